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
	"context"
	"errors"
	"os"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

func newSampleManifest() *manifest.Manifest {
	m := manifest.New()
	m.BackupLabelSet("20260115-120000F")
	m.Data.BackupType = manifest.BackupTypeFull
	m.Data.PgID = 1
	m.Data.PgVersion = 150000
	m.Data.PgSystemID = 7123456789012345678
	m.Data.BackupTimestampStart = 1000
	m.Data.BackupTimestampStop = 2000
	m.Data.BackupTimestampCopyStart = 1000
	m.Data.ArchiveStart = "000000010000000100000001"
	m.Data.ArchiveStop = "000000010000000100000002"

	m.Targets = append(m.Targets, manifest.Target{Name: "pg_data", Type: manifest.TargetTypePath, Path: "/data"})
	m.Paths = append(m.Paths, manifest.Path{
		Name: "pg_data", Mode: 0o700, User: m.Owners.Intern("postgres"), Group: m.Owners.Intern("postgres"),
	})
	m.Links = append(m.Links, manifest.Link{
		Name: "pg_data/postgresql.conf", Destination: "/etc/postgresql/postgresql.conf",
		User: m.Owners.Intern("postgres"), Group: m.Owners.Intern("postgres"),
	})
	m.Databases = append(m.Databases, manifest.Database{Name: "postgres", ID: 1, LastSystemID: 12})

	postgres := m.Owners.Intern("postgres")
	files := []string{"pg_data/base/1/1", "pg_data/base/1/2", "pg_data/base/1/3", "pg_data/base/1/4"}
	for i, name := range files {
		mode := uint32(0o600)
		if i == len(files)-1 {
			mode = 0o640
		}
		m.Files = append(m.Files, manifest.File{
			Name: name, Size: uint64(100 + i), SizeRepo: uint64(100 + i), Timestamp: int64(1000 + i),
			ChecksumSHA1: "deadbeef", Mode: mode, User: postgres, Group: postgres, Reference: -1,
		})
	}
	m.Sort()
	return m
}

var _ = Describe("Manifest text serialization", func() {
	It("round-trips a well-formed manifest through Save and Load", func() {
		m := newSampleManifest()

		data, err := m.Save()
		Expect(err).NotTo(HaveOccurred())

		loaded, err := manifest.Load(data)
		Expect(err).NotTo(HaveOccurred())

		Expect(loaded.Data.BackupLabel).To(Equal(m.Data.BackupLabel))
		Expect(loaded.Data.BackupType).To(Equal(m.Data.BackupType))
		Expect(loaded.Data.PgVersion).To(Equal(m.Data.PgVersion))
		Expect(loaded.Data.PgSystemID).To(Equal(m.Data.PgSystemID))
		Expect(loaded.Data.ArchiveStart).To(Equal(m.Data.ArchiveStart))
		Expect(loaded.Data.ArchiveStop).To(Equal(m.Data.ArchiveStop))

		Expect(loaded.Files).To(HaveLen(len(m.Files)))
		for _, want := range m.Files {
			got, ok := loaded.FileFind(want.Name)
			Expect(ok).To(BeTrue())
			Expect(got.Size).To(Equal(want.Size))
			Expect(got.Timestamp).To(Equal(want.Timestamp))
			Expect(got.Mode).To(Equal(want.Mode))
			Expect(got.ChecksumSHA1).To(Equal(want.ChecksumSHA1))
			Expect(loaded.Owners.Get(got.User)).To(Equal(m.Owners.Get(want.User)))
		}

		link, ok := loaded.LinkFind("pg_data/postgresql.conf")
		Expect(ok).To(BeTrue())
		Expect(link.Destination).To(Equal("/etc/postgresql/postgresql.conf"))

		path, ok := loaded.PathFind("pg_data")
		Expect(ok).To(BeTrue())
		Expect(path.Mode).To(Equal(uint32(0o700)))

		Expect(loaded.Databases).To(HaveLen(1))
		Expect(loaded.Databases[0].Name).To(Equal("postgres"))
		Expect(loaded.Databases[0].LastSystemID).To(Equal(uint32(12)))
	})

	It("factors the plurality mode and user into [target:file:default], leaving only the outlier explicit (scenario C)", func() {
		m := newSampleManifest()
		data, err := m.Save()
		Expect(err).NotTo(HaveOccurred())
		text := string(data)

		Expect(text).To(ContainSubstring(`[target:file:default]`))
		Expect(text).To(ContainSubstring(`mode="0600"`))
		Expect(text).To(ContainSubstring(`user="postgres"`))

		fileSection := text[strings.Index(text, "[target:file]"):strings.Index(text, "[target:file:default]")]
		Expect(fileSection).To(ContainSubstring(`"mode":"0640"`))
		Expect(strings.Count(fileSection, `"user"`)).To(Equal(0))
	})

	It("computes the [backrest] checksum as the SHA-1 of the document with a placeholder checksum (invariant 9)", func() {
		m := newSampleManifest()

		data, err := m.Save()
		Expect(err).NotTo(HaveOccurred())

		_, err = manifest.Load(data)
		Expect(err).NotTo(HaveOccurred())

		corrupted := append([]byte{}, data...)
		corrupted = append(corrupted, '\n')
		_, err = manifest.Load(corrupted)
		Expect(err).To(HaveOccurred())
	})

	It("falls back to the .copy sibling when the primary manifest is corrupt (scenario F)", func() {
		dir, err := os.MkdirTemp("", "manifest-copy-fallback")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		s := storage.NewPosix(dir)
		m := newSampleManifest()
		ctx := context.Background()

		Expect(manifest.SaveFile(ctx, s, "backup.manifest", m)).To(Succeed())

		w, err := s.OpenWrite(ctx, "backup.manifest")
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte("not a valid manifest"))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		loaded, err := manifest.LoadFile(ctx, s, "backup.manifest")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Data.BackupLabel).To(Equal(m.Data.BackupLabel))

		Expect(s.Remove("backup.manifest")).To(Succeed())
		Expect(s.Remove("backup.manifest.copy")).To(Succeed())
		_, err = manifest.LoadFile(ctx, s, "backup.manifest")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("backup.manifest"))
		Expect(err.Error()).To(ContainSubstring("backup.manifest.copy"))
	})

	It("surfaces a FileWriteError when the I/O timeout has already elapsed on save", func() {
		dir, err := os.MkdirTemp("", "manifest-save-timeout")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		s := storage.NewPosix(dir)
		m := newSampleManifest()

		expired, cancel := context.WithCancel(context.Background())
		cancel()

		err = manifest.SaveFile(expired, s, "backup.manifest", m)
		Expect(err).To(HaveOccurred())
		var writeErr *manifest.FileWriteError
		Expect(errors.As(err, &writeErr)).To(BeTrue())
	})

	It("surfaces a FileOpenError naming the timeout when the I/O timeout has already elapsed on load", func() {
		dir, err := os.MkdirTemp("", "manifest-load-timeout")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		s := storage.NewPosix(dir)
		m := newSampleManifest()
		Expect(manifest.SaveFile(context.Background(), s, "backup.manifest", m)).To(Succeed())

		expired, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = manifest.LoadFile(expired, s, "backup.manifest")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("timed out reading"))
	})
})
