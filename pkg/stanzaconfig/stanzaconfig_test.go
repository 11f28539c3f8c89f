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

package stanzaconfig_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/stanzaconfig"
)

var _ = Describe("Parse", func() {
	It("fills in package defaults for fields the document omits", func() {
		cfg, err := stanzaconfig.Parse([]byte(`
stanza: main
repoPath: /var/lib/pgbackrest
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.StanzaName).To(Equal("main"))
		Expect(cfg.Compression).To(Equal(stanzaconfig.CompressionNone))
		Expect(cfg.ChecksumSize).To(Equal(stanzaconfig.DefaultChecksumSize))
		Expect(cfg.BlockSize).To(Equal(stanzaconfig.DefaultBlockSize))
	})

	It("honors an explicit compression and retention policy", func() {
		cfg, err := stanzaconfig.Parse([]byte(`
stanza: main
repoPath: /var/lib/pgbackrest
compression: zst
retention:
  full: 2
  diff: 7
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Compression).To(Equal(stanzaconfig.CompressionZstd))
		Expect(cfg.Retention.Full).To(Equal(2))
		Expect(cfg.Retention.Diff).To(Equal(7))
	})

	It("rejects a document missing the stanza name", func() {
		_, err := stanzaconfig.Parse([]byte(`repoPath: /var/lib/pgbackrest`))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a document missing the repository path", func() {
		_, err := stanzaconfig.Parse([]byte(`stanza: main`))
		Expect(err).To(HaveOccurred())
	})
})
