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

// Package manifest implements the incremental backup manifest: its data
// model, build/validate/incremental/complete lifecycle, link-check pass,
// and canonical text serialization with a checksum trailer.
package manifest

import "sort"

// OwnerRef is a non-owning reference into a Manifest's interned owner
// list. ownerRefNone means the owner is unknown (on disk: JSON `false`).
type OwnerRef int32

const ownerRefNone OwnerRef = -1

// OwnerList interns user/group names so each distinct name is stored once
// per manifest; entries hold an OwnerRef rather than a copy of the string.
type OwnerList struct {
	names []string
	index map[string]int
}

// NewOwnerList returns an empty interning table.
func NewOwnerList() *OwnerList {
	return &OwnerList{index: make(map[string]int)}
}

// Intern returns the OwnerRef for name, adding it to the table if this is
// the first occurrence. An empty name interns to ownerRefNone.
func (o *OwnerList) Intern(name string) OwnerRef {
	if name == "" {
		return ownerRefNone
	}
	if i, ok := o.index[name]; ok {
		return OwnerRef(i)
	}
	i := len(o.names)
	o.names = append(o.names, name)
	o.index[name] = i
	return OwnerRef(i)
}

// Get resolves ref back to its name, or "" for ownerRefNone.
func (o *OwnerList) Get(ref OwnerRef) string {
	if ref == ownerRefNone {
		return ""
	}
	return o.names[ref]
}

// ReferenceRef is a non-owning reference into a Manifest's interned
// backup-label reference list.
type ReferenceRef int32

const referenceRefNone ReferenceRef = -1

// ReferenceList interns backup labels referenced by files in this
// manifest, in first-seen order, with the current backup's own label
// always present once BackupLabelSet has run (§3.2 invariant 10).
type ReferenceList struct {
	labels []string
	index  map[string]int
}

// NewReferenceList returns an empty interning table.
func NewReferenceList() *ReferenceList {
	return &ReferenceList{index: make(map[string]int)}
}

// Intern returns the ReferenceRef for label, adding it if new.
func (r *ReferenceList) Intern(label string) ReferenceRef {
	if label == "" {
		return referenceRefNone
	}
	if i, ok := r.index[label]; ok {
		return ReferenceRef(i)
	}
	i := len(r.labels)
	r.labels = append(r.labels, label)
	r.index[label] = i
	return ReferenceRef(i)
}

// Get resolves ref back to its label, or "" for referenceRefNone.
func (r *ReferenceList) Get(ref ReferenceRef) string {
	if ref == referenceRefNone {
		return ""
	}
	return r.labels[ref]
}

// Labels returns the interned labels in insertion order.
func (r *ReferenceList) Labels() []string {
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// TargetType discriminates a backup target.
type TargetType int

const (
	TargetTypePath TargetType = iota
	TargetTypeLink
)

// Target is a logical root of the backup: the data directory, a
// tablespace, or a symlinked file (§3.1).
type Target struct {
	Name           string
	Type           TargetType
	Path           string
	File           string
	TablespaceID   uint32
	TablespaceName string
}

// IsFileLink reports whether this target is a link to a single file
// rather than a directory.
func (t Target) IsFileLink() bool { return t.Type == TargetTypeLink && t.File != "" }

// Path is a directory within some target.
type Path struct {
	Name  string
	Mode  uint32
	User  OwnerRef
	Group OwnerRef
}

// BackupType is the kind of backup a manifest represents.
type BackupType string

const (
	BackupTypeFull BackupType = "full"
	BackupTypeDiff BackupType = "diff"
	BackupTypeIncr BackupType = "incr"
)

// File is a regular file tracked by the manifest (§3.1).
type File struct {
	Name string

	// Per-backup transient decision flags (§4.2.3).
	Copy   bool
	Delta  bool
	Resume bool

	Primary           bool
	ChecksumPage      bool
	ChecksumPageError bool

	Mode  uint32
	User  OwnerRef
	Group OwnerRef

	ChecksumSHA1          string
	ChecksumRepoSHA1      string
	ChecksumPageErrorList []int64

	Reference ReferenceRef

	Size      uint64
	SizeRepo  uint64
	Timestamp int64

	BundleID     uint32
	BundleOffset uint64

	BlockIncrSize         uint32
	BlockIncrChecksumSize uint32
	BlockIncrMapSize      uint64
}

// HasBlockIncr reports whether this file carries block-increment metadata.
// §3.2 invariant 7 requires the three fields to be all-zero or all-nonzero.
func (f File) HasBlockIncr() bool { return f.BlockIncrSize != 0 }

// Link is a symbolic link recreated at restore time.
type Link struct {
	Name        string
	Destination string
	User        OwnerRef
	Group       OwnerRef
}

// Database is a PostgreSQL database recorded for reference.
type Database struct {
	Name         string
	ID           uint32
	LastSystemID uint32
}

// Data is the manifest header (ManifestData in the original design).
type Data struct {
	BackupLabel      string
	BackupLabelPrior string

	BackupTimestampCopyStart int64
	BackupTimestampStart     int64
	BackupTimestampStop      int64
	BackupType               BackupType

	ArchiveStart string
	ArchiveStop  string
	LSNStart     string
	LSNStop      string

	PgID       uint32
	PgVersion  uint32
	PgSystemID uint64

	OptionArchiveCheck         bool
	OptionArchiveCopy          bool
	OptionStandby              OptionVariant
	OptionBufferSize           OptionVariant
	OptionChecksumPage         OptionVariant
	OptionCompress             bool
	OptionCompressLevel        OptionVariant
	OptionCompressLevelNetwork OptionVariant
	OptionDelta                OptionVariant
	OptionHardLink             bool
	OptionOnline               bool
	OptionProcessMax           OptionVariant
	OptionBundle               bool
	OptionBlockIncr            bool

	// CompressType names the repository compression codec in effect for
	// this backup (e.g. "gzip", "zst", "none"); set at Validate time from
	// the stanza's own configuration.
	CompressType string
}

// Manifest is the aggregate catalogue of every object in one backup (§3.1).
type Manifest struct {
	Data Data

	Targets   []Target
	Paths     []Path
	Files     []File
	Links     []Link
	Databases []Database

	Annotations map[string]string

	Owners     *OwnerList
	References *ReferenceList
}

// New returns an empty Manifest with fresh interning tables.
func New() *Manifest {
	return &Manifest{
		Owners:     NewOwnerList(),
		References: NewReferenceList(),
	}
}

// FileFind returns the file named name, or false if absent.
func (m *Manifest) FileFind(name string) (File, bool) {
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Name >= name })
	if i < len(m.Files) && m.Files[i].Name == name {
		return m.Files[i], true
	}
	return File{}, false
}

// TargetFind returns the target named name, or false if absent.
func (m *Manifest) TargetFind(name string) (Target, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// LinkFind returns the link named name, or false if absent.
func (m *Manifest) LinkFind(name string) (Link, bool) {
	for _, l := range m.Links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}

// PathFind returns the path named name, or false if absent.
func (m *Manifest) PathFind(name string) (Path, bool) {
	for _, p := range m.Paths {
		if p.Name == name {
			return p, true
		}
	}
	return Path{}, false
}

// BackupLabelSet records label as this manifest's own backup label and
// interns it into the reference list, satisfying §3.2 invariant 10.
func (m *Manifest) BackupLabelSet(label string) {
	m.Data.BackupLabel = label
	m.References.Intern(label)
}

// Sort orders targets, paths, files, links, and databases ascending by
// their primary name field, byte-wise (§4.2.1 step 4, §5 ordering
// guarantees).
func (m *Manifest) Sort() {
	sort.Slice(m.Targets, func(i, j int) bool { return m.Targets[i].Name < m.Targets[j].Name })
	sort.Slice(m.Paths, func(i, j int) bool { return m.Paths[i].Name < m.Paths[j].Name })
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Name < m.Files[j].Name })
	sort.Slice(m.Links, func(i, j int) bool { return m.Links[i].Name < m.Links[j].Name })
	sort.Slice(m.Databases, func(i, j int) bool { return m.Databases[i].Name < m.Databases[j].Name })
}
