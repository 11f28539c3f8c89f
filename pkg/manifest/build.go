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

package manifest

import (
	"path"
	"regexp"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// PgDataTarget is the name of the always-present root target (§3.2
// invariant 1).
const PgDataTarget = "pg_data"

// PgTblspcTarget is the directory name under which tablespace targets are
// rooted.
const PgTblspcTarget = "pg_tblspc"

var unloggedInitForkExp = regexp.MustCompile(`_init$`)

// Builder assembles a Manifest from a live cluster scan (§4.2.1).
type Builder struct {
	m *Manifest

	defaultFileMode uint32
	defaultPathMode uint32
	defaultUser     string
	defaultGroup    string
}

// NewBuilder returns a Builder around a fresh Manifest.
func NewBuilder() *Builder {
	return &Builder{m: New()}
}

// Init performs build phase 1: header initialization (§4.2.1 step 1),
// including the bundle/block-increment flags the step requires alongside
// online/checksum-page. pgVersion must be a real, nonzero encoded
// PostgreSQL version; a zero value means the caller skipped probing the
// cluster.
func (b *Builder) Init(
	pgID, pgVersion uint32, pgSystemID uint64, timestampStart int64,
	online, checksumPage, bundle, blockIncr bool,
) error {
	if pgVersion == 0 {
		return optionInvalidErrorf("Init: pgVersion must not be zero")
	}
	b.m.Data.PgID = pgID
	b.m.Data.PgVersion = pgVersion
	b.m.Data.PgSystemID = pgSystemID
	b.m.Data.BackupTimestampStart = timestampStart
	b.m.Data.BackupType = BackupTypeFull
	b.m.Data.OptionOnline = online
	b.m.Data.OptionChecksumPage = boolVariant(checksumPage)
	b.m.Data.OptionBundle = bundle
	b.m.Data.OptionBlockIncr = blockIncr
	return nil
}

func boolVariant(v bool) OptionVariant { return variantFromBool(v) }

// AddRootTarget performs build phase 2: adds the pg_data target and
// derives file/path defaults from the root directory's stat (§4.2.1 step
// 2).
func (b *Builder) AddRootTarget(rootPath string, rootStat storage.Info) {
	b.m.Targets = append(b.m.Targets, Target{
		Name: PgDataTarget,
		Type: TargetTypePath,
		Path: rootPath,
	})
	b.defaultPathMode = rootStat.Mode
	b.defaultFileMode = rootStat.Mode
}

// SetOwnerDefaults records the default user/group inherited by files and
// paths that don't differ from the root directory's ownership.
func (b *Builder) SetOwnerDefaults(user, group string) {
	b.defaultUser = user
	b.defaultGroup = group
}

// AddPath performs build phase 3 for a directory entry: fields equal to
// the current defaults are recorded as such (the default/omit decision is
// made later, at serialization time, from the actual plurality — see
// pkg/manifest/serialize_write.go).
func (b *Builder) AddPath(name string, mode uint32, user, group string) {
	b.m.Paths = append(b.m.Paths, Path{
		Name:  name,
		Mode:  mode,
		User:  b.m.Owners.Intern(user),
		Group: b.m.Owners.Intern(group),
	})
}

// AddLink performs build phase 3 for a symlink entry.
func (b *Builder) AddLink(name, destination, user, group string) {
	b.m.Links = append(b.m.Links, Link{
		Name:        name,
		Destination: destination,
		User:        b.m.Owners.Intern(user),
		Group:       b.m.Owners.Intern(group),
	})
}

// AddFile performs build phase 3 for a regular file entry. Copy defaults
// to true: every newly scanned file is copied in full until the
// incremental phase says otherwise.
func (b *Builder) AddFile(f File, user, group string) {
	f.User = b.m.Owners.Intern(user)
	f.Group = b.m.Owners.Intern(group)
	f.Copy = true
	b.m.Files = append(b.m.Files, f)
}

// AddTarget records a tablespace or file-link target.
func (b *Builder) AddTarget(t Target) {
	b.m.Targets = append(b.m.Targets, t)
}

// AddDatabase records a database entry.
func (b *Builder) AddDatabase(d Database) {
	b.m.Databases = append(b.m.Databases, d)
}

// tempRelationExp matches temporary relation filenames (t<backendPid>_<relfilenode>...),
// excluded by the scanner before they ever reach the builder (§4.1); kept
// here too since callers may feed pre-scanned entries directly.
var tempRelationExp = regexp.MustCompile(`^t[0-9]+_[0-9]+`)

// IsTemporaryRelation reports whether name (the file's base name) looks
// like a temporary relation file that should never be added to the
// manifest.
func IsTemporaryRelation(baseName string) bool {
	return tempRelationExp.MatchString(baseName)
}

// RemoveUnloggedRelations performs build phase 5 (§4.1): after Sort, any
// relation file whose numeric base id does NOT have an adjacent `_init`
// fork present is unlogged and is dropped. relationBaseExp must capture
// the numeric base id in its first group; it is matched against each
// file's base name.
func (b *Builder) RemoveUnloggedRelations(relationBaseExp *regexp.Regexp) {
	initForks := make(map[string]bool)
	for _, f := range b.m.Files {
		if m := relationBaseExp.FindStringSubmatch(path.Base(f.Name)); m != nil && unloggedInitForkExp.MatchString(f.Name) {
			initForks[m[1]] = true
		}
	}

	kept := b.m.Files[:0]
	for _, f := range b.m.Files {
		m := relationBaseExp.FindStringSubmatch(path.Base(f.Name))
		if m == nil {
			kept = append(kept, f)
			continue
		}
		if initForks[m[1]] || unloggedInitForkExp.MatchString(f.Name) {
			kept = append(kept, f)
		}
	}
	b.m.Files = kept
}

// Manifest returns the manifest under construction.
func (b *Builder) Manifest() *Manifest { return b.m }
