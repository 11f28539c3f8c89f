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
	"crypto/sha1" //nolint:gosec // integrity trailer, not a security boundary
	"encoding/hex"
	"strconv"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/variant"
)

// backrestFormat is the on-disk format number this package reads and
// writes. Load rejects any other value.
const backrestFormat = 5

// backrestVersion is the software version string stamped into the
// trailer; it is informational only and never checked on load.
const backrestVersion = "1.0.0"

// backrestChecksumPlaceholder stands in for the real checksum while
// computing it, so the hashed bytes are deterministic regardless of the
// checksum's own length (§8.1 invariant 9).
const backrestChecksumPlaceholder = ""

// fileDefaults holds the per-section plurality values factored out of
// target:file entries before they are written (§4.4 default factoring).
type fileDefaults struct {
	group   OwnerRef
	mode    uint32
	primary bool
	user    OwnerRef
}

type linkDefaults struct {
	group OwnerRef
	user  OwnerRef
}

type pathDefaults struct {
	group OwnerRef
	mode  uint32
	user  OwnerRef
}

func computeFileDefaults(files []File) fileDefaults {
	groups := make([]OwnerRef, len(files))
	modes := make([]uint32, len(files))
	primaries := make([]bool, len(files))
	users := make([]OwnerRef, len(files))

	for i, f := range files {
		groups[i] = f.Group
		modes[i] = f.Mode
		primaries[i] = f.Primary
		users[i] = f.User
	}

	return fileDefaults{
		group:   variant.MostCommon(groups),
		mode:    variant.MostCommon(modes),
		primary: variant.MostCommonBool(primaries),
		user:    variant.MostCommon(users),
	}
}

func computeLinkDefaults(links []Link) linkDefaults {
	groups := make([]OwnerRef, len(links))
	users := make([]OwnerRef, len(links))
	for i, l := range links {
		groups[i] = l.Group
		users[i] = l.User
	}
	return linkDefaults{group: variant.MostCommon(groups), user: variant.MostCommon(users)}
}

func computePathDefaults(paths []Path) pathDefaults {
	groups := make([]OwnerRef, len(paths))
	modes := make([]uint32, len(paths))
	users := make([]OwnerRef, len(paths))
	for i, p := range paths {
		groups[i] = p.Group
		modes[i] = p.Mode
		users[i] = p.User
	}
	return pathDefaults{
		group: variant.MostCommon(groups),
		mode:  variant.MostCommon(modes),
		user:  variant.MostCommon(users),
	}
}

// Save renders the manifest to its canonical text form, including the
// trailing [backrest] checksum section (§4.4).
func (m *Manifest) Save() ([]byte, error) {
	if len(m.Files) == 0 {
		assertErrorf("manifest: Save called with an empty file list")
	}
	if len(m.Paths) == 0 {
		assertErrorf("manifest: Save called with an empty path list")
	}

	doc := &iniDoc{}

	m.renderBackup(doc)
	m.renderBackupDB(doc)
	m.renderBackupOption(doc)
	m.renderBackupTarget(doc)
	m.renderDB(doc)

	fileDef := computeFileDefaults(m.Files)
	m.renderFiles(doc, fileDef)
	m.renderFileDefaults(doc, fileDef)

	linkDef := computeLinkDefaults(m.Links)
	m.renderLinks(doc, linkDef)
	if len(m.Links) > 0 {
		m.renderLinkDefaults(doc, linkDef)
	}

	pathDef := computePathDefaults(m.Paths)
	m.renderPaths(doc, pathDef)
	m.renderPathDefaults(doc, pathDef)

	body := doc.render()

	placeholder := renderBackrestSection(backrestChecksumPlaceholder)
	hashed := make([]byte, 0, len(body)+len(placeholder))
	hashed = append(hashed, body...)
	hashed = append(hashed, placeholder...)

	sum := sha1.Sum(hashed) //nolint:gosec // matches source's SHA-1 integrity trailer
	checksum := hex.EncodeToString(sum[:])

	final := make([]byte, 0, len(body)+len(placeholder)+len(checksum))
	final = append(final, body...)
	final = append(final, renderBackrestSection(checksum)...)
	return final, nil
}

func renderBackrestSection(checksum string) []byte {
	s := newINISection("backrest")
	s.set("backrest-checksum", jsonEncode(checksum))
	s.set("backrest-format", jsonEncode(backrestFormat))
	s.set("backrest-version", jsonEncode(backrestVersion))

	doc := &iniDoc{}
	doc.add(s)
	return doc.render()
}

func (m *Manifest) renderBackup(doc *iniDoc) {
	s := newINISection("backup")
	d := m.Data

	if d.ArchiveStart != "" {
		s.set("backup-archive-start", jsonEncode(d.ArchiveStart))
	}
	if d.ArchiveStop != "" {
		s.set("backup-archive-stop", jsonEncode(d.ArchiveStop))
	}
	s.set("backup-label", jsonEncode(d.BackupLabel))
	if d.LSNStart != "" {
		s.set("backup-lsn-start", jsonEncode(d.LSNStart))
	}
	if d.LSNStop != "" {
		s.set("backup-lsn-stop", jsonEncode(d.LSNStop))
	}
	if d.BackupLabelPrior != "" {
		s.set("backup-prior", jsonEncode(d.BackupLabelPrior))
	}
	s.set("backup-timestamp-copy-start", jsonEncode(d.BackupTimestampCopyStart))
	s.set("backup-timestamp-start", jsonEncode(d.BackupTimestampStart))
	s.set("backup-timestamp-stop", jsonEncode(d.BackupTimestampStop))
	s.set("backup-type", jsonEncode(string(d.BackupType)))

	doc.add(s)
}

func (m *Manifest) renderBackupDB(doc *iniDoc) {
	s := newINISection("backup:db")
	d := m.Data

	s.set("db-id", jsonEncode(d.PgID))
	s.set("db-system-id", jsonEncode(d.PgSystemID))
	s.set("db-version", jsonEncode(pgVersionToStr(d.PgVersion)))

	doc.add(s)
}

func (m *Manifest) renderBackupOption(doc *iniDoc) {
	s := newINISection("backup:option")
	d := m.Data

	s.set("option-archive-check", jsonEncode(d.OptionArchiveCheck))
	s.set("option-archive-copy", jsonEncode(d.OptionArchiveCopy))

	if !d.OptionStandby.IsNull() {
		s.set("option-backup-standby", jsonEncode(variantToJSON(d.OptionStandby)))
	}
	if !d.OptionBufferSize.IsNull() {
		s.set("option-buffer-size", jsonEncode(variantToJSON(d.OptionBufferSize)))
	}
	if !d.OptionChecksumPage.IsNull() {
		s.set("option-checksum-page", jsonEncode(variantToJSON(d.OptionChecksumPage)))
	}

	s.set("option-compress", jsonEncode(d.OptionCompress))

	if !d.OptionCompressLevel.IsNull() {
		s.set("option-compress-level", jsonEncode(variantToJSON(d.OptionCompressLevel)))
	}
	if !d.OptionCompressLevelNetwork.IsNull() {
		s.set("option-compress-level-network", jsonEncode(variantToJSON(d.OptionCompressLevelNetwork)))
	}
	if !d.OptionDelta.IsNull() {
		s.set("option-delta", jsonEncode(variantToJSON(d.OptionDelta)))
	}

	s.set("option-hardlink", jsonEncode(d.OptionHardLink))
	s.set("option-online", jsonEncode(d.OptionOnline))

	if !d.OptionProcessMax.IsNull() {
		s.set("option-process-max", jsonEncode(variantToJSON(d.OptionProcessMax)))
	}

	s.set("option-bundle", jsonEncode(d.OptionBundle))
	s.set("option-block-incr", jsonEncode(d.OptionBlockIncr))
	if d.CompressType != "" {
		s.set("compress-type", jsonEncode(d.CompressType))
	}

	doc.add(s)
}

func (m *Manifest) renderBackupTarget(doc *iniDoc) {
	s := newINISection("backup:target")
	for _, t := range m.Targets {
		obj := map[string]interface{}{"type": targetTypeStr(t.Type)}
		if t.Type == TargetTypeLink {
			obj["path"] = t.Path
			if t.File != "" {
				obj["file"] = t.File
			}
		} else {
			obj["path"] = t.Path
		}
		if t.TablespaceID != 0 {
			obj["tablespace-id"] = t.TablespaceID
		}
		if t.TablespaceName != "" {
			obj["tablespace-name"] = t.TablespaceName
		}
		s.set(t.Name, jsonEncode(obj))
	}
	doc.add(s)
}

func (m *Manifest) renderDB(doc *iniDoc) {
	s := newINISection("db")
	for _, db := range m.Databases {
		obj := map[string]interface{}{
			"db-id":             db.ID,
			"db-last-system-id": db.LastSystemID,
		}
		s.set(db.Name, jsonEncode(obj))
	}
	doc.add(s)
}

func (m *Manifest) renderFiles(doc *iniDoc, def fileDefaults) {
	s := newINISection("target:file")
	for _, f := range m.Files {
		obj := map[string]interface{}{}

		if f.Size != 0 {
			obj["checksum"] = f.ChecksumSHA1
		}
		if f.ChecksumPage {
			obj["checksum-page"] = f.ChecksumPage
			if f.ChecksumPageError {
				obj["checksum-page-error"] = f.ChecksumPageError
			}
			if len(f.ChecksumPageErrorList) > 0 {
				obj["checksum-page-error-list"] = f.ChecksumPageErrorList
			}
		}
		if f.Group != def.group {
			obj["group"] = ownerJSON(m.Owners, f.Group)
		}
		if f.Primary != def.primary {
			obj["master"] = f.Primary
		}
		if f.Mode != def.mode {
			obj["mode"] = modeJSON(f.Mode)
		}
		if f.Reference != referenceRefNone {
			obj["reference"] = m.References.Get(f.Reference)
		}
		if f.SizeRepo != f.Size {
			obj["repo-size"] = f.SizeRepo
		}
		obj["size"] = f.Size
		obj["timestamp"] = f.Timestamp
		if f.User != def.user {
			obj["user"] = ownerJSON(m.Owners, f.User)
		}
		if f.BundleID != 0 {
			obj["bundle-id"] = f.BundleID
			obj["bundle-offset"] = f.BundleOffset
		}
		if f.HasBlockIncr() {
			obj["block-incr-size"] = f.BlockIncrSize
			obj["block-incr-checksum-size"] = f.BlockIncrChecksumSize
			obj["block-incr-map-size"] = f.BlockIncrMapSize
		}

		s.set(f.Name, jsonEncode(obj))
	}
	doc.add(s)
}

func (m *Manifest) renderFileDefaults(doc *iniDoc, def fileDefaults) {
	s := newINISection("target:file:default")
	s.set("group", jsonEncode(ownerJSON(m.Owners, def.group)))
	s.set("master", jsonEncode(def.primary))
	s.set("mode", jsonEncode(modeJSON(def.mode)))
	s.set("user", jsonEncode(ownerJSON(m.Owners, def.user)))
	doc.add(s)
}

func (m *Manifest) renderLinks(doc *iniDoc, def linkDefaults) {
	s := newINISection("target:link")
	for _, l := range m.Links {
		obj := map[string]interface{}{"destination": l.Destination}
		if l.Group != def.group {
			obj["group"] = ownerJSON(m.Owners, l.Group)
		}
		if l.User != def.user {
			obj["user"] = ownerJSON(m.Owners, l.User)
		}
		s.set(l.Name, jsonEncode(obj))
	}
	doc.add(s)
}

func (m *Manifest) renderLinkDefaults(doc *iniDoc, def linkDefaults) {
	s := newINISection("target:link:default")
	s.set("group", jsonEncode(ownerJSON(m.Owners, def.group)))
	s.set("user", jsonEncode(ownerJSON(m.Owners, def.user)))
	doc.add(s)
}

func (m *Manifest) renderPaths(doc *iniDoc, def pathDefaults) {
	s := newINISection("target:path")
	for _, p := range m.Paths {
		obj := map[string]interface{}{}
		if p.Group != def.group {
			obj["group"] = ownerJSON(m.Owners, p.Group)
		}
		if p.Mode != def.mode {
			obj["mode"] = modeJSON(p.Mode)
		}
		if p.User != def.user {
			obj["user"] = ownerJSON(m.Owners, p.User)
		}
		s.set(p.Name, jsonEncode(obj))
	}
	doc.add(s)
}

func (m *Manifest) renderPathDefaults(doc *iniDoc, def pathDefaults) {
	s := newINISection("target:path:default")
	s.set("group", jsonEncode(ownerJSON(m.Owners, def.group)))
	s.set("mode", jsonEncode(modeJSON(def.mode)))
	s.set("user", jsonEncode(ownerJSON(m.Owners, def.user)))
	doc.add(s)
}

func targetTypeStr(t TargetType) string {
	if t == TargetTypeLink {
		return "link"
	}
	return "path"
}

// pgVersionToStr renders an internal numeric Postgres version the way the
// source's pgVersionToStr does: major-only for >= 10 ("15"), major.minor
// below that ("9.4").
func pgVersionToStr(version uint32) string {
	major := version / 10000
	minor := version % 10000 / 100
	if major >= 10 {
		return strconv.FormatUint(uint64(major), 10)
	}
	return strconv.FormatUint(uint64(major), 10) + "." + strconv.FormatUint(uint64(minor), 10)
}
