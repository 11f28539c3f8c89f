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

package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0o750)
}

var _ = Describe("Posix storage", func() {
	ctx := context.Background()

	It("writes a new file, reports it changed, and becomes a no-op on identical content", func() {
		root := filepath.Join(tempDir, "posix1")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		changed, err := storage.WriteString(ctx, s, "a/b/test.txt", "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		changed, err = storage.WriteString(ctx, s, "a/b/test.txt", "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())

		changed, err = storage.WriteString(ctx, s, "a/b/test.txt", "world")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
	})

	It("reports ErrNotExist for a missing path via Exists and Stat", func() {
		root := filepath.Join(tempDir, "posix2")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		ok, err := storage.Exists(ctx, s, "nope.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		_, err = s.Stat(ctx, "nope.txt")
		Expect(errors.Is(err, storage.ErrNotExist)).To(BeTrue())
	})

	It("copies a file", func() {
		root := filepath.Join(tempDir, "posix3")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		_, err := storage.WriteString(ctx, s, "src.txt", "payload")
		Expect(err).NotTo(HaveOccurred())

		Expect(storage.Copy(ctx, s, "src.txt", "dst.txt")).To(Succeed())

		content, err := storage.ReadAll(ctx, s, "dst.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(Equal("payload"))
	})

	It("lists directory entries non-recursively", func() {
		root := filepath.Join(tempDir, "posix4")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		_, err := storage.WriteString(ctx, s, "one.txt", "1")
		Expect(err).NotTo(HaveOccurred())
		_, err = storage.WriteString(ctx, s, "two.txt", "2")
		Expect(err).NotTo(HaveOccurred())
		_, err = storage.WriteString(ctx, s, "nested/three.txt", "3")
		Expect(err).NotTo(HaveOccurred())

		entries, err := s.List(ctx, ".")
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		Expect(names).To(ConsistOf("one.txt", "two.txt", "nested"))
	})

	It("leaves no partial file behind when a write is aborted before Close", func() {
		root := filepath.Join(tempDir, "posix6")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		w, err := s.OpenWrite(ctx, "atomic.txt")
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte("partial"))
		Expect(err).NotTo(HaveOccurred())

		entries, err := os.ReadDir(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).NotTo(BeEmpty())
		for _, e := range entries {
			Expect(e.Name()).NotTo(Equal("atomic.txt"))
		}

		Expect(w.Close()).To(Succeed())

		ok, err := storage.Exists(ctx, s, "atomic.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		entries, err = os.ReadDir(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("atomic.txt"))
	})

	It("returns ErrTimeout when the context is already done", func() {
		root := filepath.Join(tempDir, "posix7")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)
		Expect(os.WriteFile(filepath.Join(root, "x.txt"), []byte("x"), 0o600)).To(Succeed())

		expired, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Stat(expired, "x.txt")
		Expect(errors.Is(err, storage.ErrTimeout)).To(BeTrue())
	})

	It("removes a file without error even if absent", func() {
		root := filepath.Join(tempDir, "posix5")
		Expect(mkdirAll(root)).To(Succeed())
		s := storage.NewPosix(root)

		Expect(s.Remove("absent.txt")).To(Succeed())

		_, err := storage.WriteString(ctx, s, "present.txt", "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Remove("present.txt")).To(Succeed())

		ok, err := storage.Exists(ctx, s, "present.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
