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

package build

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/scanner"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

var _ = Describe("backupPath and lockPath", func() {
	It("lay out a repository-relative manifest and lock path per stanza", func() {
		Expect(backupPath("main", "20260101-000000F")).To(Equal("backup/main/20260101-000000F/backup.manifest"))
		Expect(lockPath("main")).To(Equal("backup/main/backup.lock"))
	})
})

var _ = Describe("relationBaseExp", func() {
	It("captures a bare relation filename's numeric base id", func() {
		m := relationBaseExp.FindStringSubmatch("16397")
		Expect(m).NotTo(BeNil())
		Expect(m[1]).To(Equal("16397"))
	})

	It("captures the base id of a segmented or forked relation file", func() {
		Expect(relationBaseExp.FindStringSubmatch("16397.1")[1]).To(Equal("16397"))
		Expect(relationBaseExp.FindStringSubmatch("16397_fsm")[1]).To(Equal("16397"))
	})

	It("does not match a non-numeric file name", func() {
		Expect(relationBaseExp.FindStringSubmatch("PG_VERSION")).To(BeNil())
	})
})

var _ = Describe("hashFile", func() {
	It("stats and SHA-1-sums a scanned file", func() {
		dir, err := os.MkdirTemp("", "build-hashfile")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		Expect(os.WriteFile(dir+"/PG_VERSION", []byte("15\n"), 0o600)).To(Succeed())

		s := storage.NewPosix(dir)
		ctx := context.Background()
		info, err := s.Stat(ctx, "PG_VERSION")
		Expect(err).NotTo(HaveOccurred())

		f, err := hashFile(ctx, s, scanner.Entry{Name: "PG_VERSION", Kind: scanner.KindFile, Info: info})
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Name).To(Equal("PG_VERSION"))
		Expect(f.Size).To(Equal(uint64(3)))
		Expect(f.ChecksumSHA1).To(HaveLen(40))
	})
})

var _ = Describe("currentOwner", func() {
	It("never returns an empty user or group", func() {
		u, g := currentOwner()
		Expect(u).NotTo(BeEmpty())
		Expect(g).NotTo(BeEmpty())
	})
})
