/*
Copyright The CloudNativePG Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package manifest_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
)

var _ = Describe("Builder.Init", func() {
	It("rejects a zero pgVersion", func() {
		b := manifest.NewBuilder()
		err := b.Init(202110181, 0, 7123456789012345678, 1700000000, true, true, false, false)
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&manifest.OptionInvalidError{}))
	})

	It("accepts a real pgVersion", func() {
		b := manifest.NewBuilder()
		Expect(b.Init(202110181, 150003, 7123456789012345678, 1700000000, true, true, false, false)).To(Succeed())
		Expect(b.Manifest().Data.PgVersion).To(Equal(uint32(150003)))
	})

	It("records the bundle and block-increment flags", func() {
		b := manifest.NewBuilder()
		Expect(b.Init(202110181, 150003, 7123456789012345678, 1700000000, true, true, true, true)).To(Succeed())
		Expect(b.Manifest().Data.OptionBundle).To(BeTrue())
		Expect(b.Manifest().Data.OptionBlockIncr).To(BeTrue())
	})
})
