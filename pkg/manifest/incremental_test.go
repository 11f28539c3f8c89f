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

	"github.com/cloudnative-pg/pgbackrest-core/internal/corelog"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
)

func newPriorWithFile(label string, f manifest.File) *manifest.Manifest {
	p := manifest.New()
	p.BackupLabelSet(label)
	p.Data.BackupType = manifest.BackupTypeFull
	p.Files = append(p.Files, f)
	p.Sort()
	return p
}

var _ = Describe("Manifest.BuildIncr", func() {
	It("preserves checksum/reference/size when file size is unchanged (scenario: incremental preservation)", func() {
		prior := newPriorWithFile("20260101-full", manifest.File{
			Name:         "pg_data/base/1/1",
			Size:         100,
			Timestamp:    1000,
			ChecksumSHA1: "abc123",
			Reference:    -1,
		})

		this := manifest.New()
		this.BackupLabelSet("20260102-incr")
		this.Files = append(this.Files, manifest.File{
			Name:      "pg_data/base/1/1",
			Size:      100,
			Timestamp: 1000,
			Copy:      true,
		})
		this.Sort()

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())

		f, ok := this.FileFind("pg_data/base/1/1")
		Expect(ok).To(BeTrue())
		Expect(f.ChecksumSHA1).To(Equal("abc123"))
		Expect(this.References.Get(f.Reference)).To(Equal("20260101-full"))
		Expect(f.Copy).To(BeFalse())
	})

	It("references rather than copies when both this and prior files are zero-length (scenario: zero-file handling)", func() {
		prior := newPriorWithFile("20260101-full", manifest.File{
			Name:      "pg_data/base/1/2",
			Size:      0,
			Timestamp: 1000,
			Reference: -1,
		})

		this := manifest.New()
		this.BackupLabelSet("20260102-incr")
		this.Files = append(this.Files, manifest.File{
			Name:      "pg_data/base/1/2",
			Size:      0,
			Timestamp: 2000,
			Copy:      true,
		})
		this.Sort()

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())

		f, ok := this.FileFind("pg_data/base/1/2")
		Expect(ok).To(BeTrue())
		Expect(f.Copy).To(BeFalse())
		Expect(f.Reference).NotTo(Equal(manifest.ReferenceRef(-1)))
	})

	It("forces delta when the new backup's timeline differs from the prior's archive-stop (scenario D)", func() {
		prior := manifest.New()
		prior.BackupLabelSet("20260101-full")
		prior.Data.ArchiveStop = "000000010000000100000010"

		this := manifest.New()
		this.BackupLabelSet("20260102-incr")

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "000000020000000100000001")).To(Succeed())
		Expect(this.Data.OptionDelta.Bool()).To(BeTrue())
	})

	It("does not force delta when the timeline's first 8 hex characters match", func() {
		prior := manifest.New()
		prior.BackupLabelSet("20260101-full")
		prior.Data.ArchiveStop = "000000010000000100000010"

		this := manifest.New()
		this.BackupLabelSet("20260102-incr")

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "000000010000000100000020")).To(Succeed())
		Expect(this.Data.OptionDelta.Bool()).To(BeFalse())
	})

	It("forces delta when the online option has changed since the prior backup", func() {
		prior := manifest.New()
		prior.BackupLabelSet("20260101-full")
		prior.Data.OptionOnline = true

		this := manifest.New()
		this.BackupLabelSet("20260102-incr")
		this.Data.OptionOnline = false

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())
		Expect(this.Data.OptionDelta.Bool()).To(BeTrue())
	})

	It("forces delta on a timestamp regression against the prior file", func() {
		prior := newPriorWithFile("20260101-full", manifest.File{
			Name: "pg_data/base/1/3", Size: 50, Timestamp: 5000, Reference: -1,
		})
		this := manifest.New()
		this.BackupLabelSet("20260102-incr")
		this.Files = append(this.Files, manifest.File{Name: "pg_data/base/1/3", Size: 50, Timestamp: 4000, Copy: true})
		this.Sort()

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())
		Expect(this.Data.OptionDelta.Bool()).To(BeTrue())
	})

	It("forces delta when size changed but timestamp did not", func() {
		prior := newPriorWithFile("20260101-full", manifest.File{
			Name: "pg_data/base/1/4", Size: 50, Timestamp: 5000, Reference: -1,
		})
		this := manifest.New()
		this.BackupLabelSet("20260102-incr")
		this.Files = append(this.Files, manifest.File{Name: "pg_data/base/1/4", Size: 99, Timestamp: 5000, Copy: true})
		this.Sort()

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())
		Expect(this.Data.OptionDelta.Bool()).To(BeTrue())
	})

	It("rejects a diff backup based on a non-full prior manifest", func() {
		prior := manifest.New()
		prior.Data.BackupType = manifest.BackupTypeIncr

		this := manifest.New()
		err := this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeDiff, "")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an incremental backup whose system id disagrees with the prior backup's", func() {
		prior := manifest.New()
		prior.Data.BackupType = manifest.BackupTypeFull
		prior.Data.PgSystemID = 7123456789012345678

		this := manifest.New()
		this.Data.PgSystemID = 1111111111111111111

		err := this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&manifest.ArchiveMismatchError{}))
	})

	It("accepts an incremental backup when the system id matches the prior backup's", func() {
		prior := manifest.New()
		prior.Data.BackupType = manifest.BackupTypeFull
		prior.Data.PgSystemID = 7123456789012345678

		this := manifest.New()
		this.Data.PgSystemID = 7123456789012345678

		Expect(this.BuildIncr(corelog.Discard(), prior, manifest.BackupTypeIncr, "")).To(Succeed())
	})
})

var _ = Describe("Manifest.LinkCheck", func() {
	It("rejects two directory link targets whose paths overlap", func() {
		m := manifest.New()
		m.Targets = append(m.Targets,
			manifest.Target{Name: "pg_tblspc/1", Type: manifest.TargetTypeLink, Path: "/data/ts1"},
			manifest.Target{Name: "pg_tblspc/2", Type: manifest.TargetTypeLink, Path: "/data/ts1/nested"},
		)
		Expect(m.LinkCheck()).To(HaveOccurred())
	})

	It("allows overlapping paths when both targets are file links", func() {
		m := manifest.New()
		m.Targets = append(m.Targets,
			manifest.Target{Name: "a", Type: manifest.TargetTypeLink, Path: "/data/ts1", File: "a.conf"},
			manifest.Target{Name: "b", Type: manifest.TargetTypeLink, Path: "/data/ts1", File: "b.conf"},
		)
		Expect(m.LinkCheck()).To(Succeed())
	})

	It("allows disjoint directory link targets", func() {
		m := manifest.New()
		m.Targets = append(m.Targets,
			manifest.Target{Name: "a", Type: manifest.TargetTypeLink, Path: "/data/ts1"},
			manifest.Target{Name: "b", Type: manifest.TargetTypeLink, Path: "/data/ts2"},
		)
		Expect(m.LinkCheck()).To(Succeed())
	})
})

var _ = Describe("Manifest.Validate", func() {
	It("forces delta when a file's timestamp exceeds the copy-start timestamp", func() {
		m := manifest.New()
		m.Files = append(m.Files, manifest.File{Name: "pg_data/x", Timestamp: 2000})
		m.Validate(corelog.Discard(), 1000, false, false, "")
		Expect(m.Data.OptionDelta.Bool()).To(BeTrue())
	})

	It("adds one second to the copy-start timestamp when the backup is online", func() {
		m := manifest.New()
		m.Validate(corelog.Discard(), 1000, true, false, "")
		Expect(m.Data.BackupTimestampCopyStart).To(Equal(int64(1001)))
	})

	It("does not adjust the copy-start timestamp when offline", func() {
		m := manifest.New()
		m.Validate(corelog.Discard(), 1000, false, false, "")
		Expect(m.Data.BackupTimestampCopyStart).To(Equal(int64(1000)))
	})

	It("records the compression algorithm", func() {
		m := manifest.New()
		m.Validate(corelog.Discard(), 1000, false, false, "zst")
		Expect(m.Data.CompressType).To(Equal("zst"))
	})
})
