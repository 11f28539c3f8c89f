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
	"bytes"
	"crypto/sha1" //nolint:gosec // integrity trailer, not a security boundary
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/variant"
)

// Load parses the canonical text form produced by Save, verifying the
// trailing checksum and format number before reconstructing the Manifest.
func Load(data []byte) (*Manifest, error) {
	marker := []byte("[backrest]\n")
	idx := bytes.Index(data, marker)
	if idx < 0 {
		return nil, formatErrorf("manifest: missing [backrest] trailer section")
	}
	body := data[:idx]

	doc, err := parseINI(data)
	if err != nil {
		return nil, err
	}

	backrest := doc.section("backrest")
	if backrest == nil {
		return nil, formatErrorf("manifest: missing [backrest] trailer section")
	}

	var checksum string
	if err := jsonDecode(backrest["backrest-checksum"], &checksum); err != nil {
		return nil, err
	}
	var format int
	if err := jsonDecode(backrest["backrest-format"], &format); err != nil {
		return nil, err
	}
	if format != backrestFormat {
		return nil, formatErrorf("manifest: unsupported format %d (expected %d)", format, backrestFormat)
	}

	// Hash the file as stored, with only the checksum's own value swapped
	// for the placeholder.
	trailer := bytes.Replace(data[idx:],
		[]byte("backrest-checksum="+jsonEncode(checksum)),
		[]byte("backrest-checksum="+jsonEncode(backrestChecksumPlaceholder)), 1)
	hashed := make([]byte, 0, len(body)+len(trailer))
	hashed = append(hashed, body...)
	hashed = append(hashed, trailer...)
	sum := sha1.Sum(hashed) //nolint:gosec // matches source's SHA-1 integrity trailer
	expected := hex.EncodeToString(sum[:])

	if expected != checksum {
		return nil, checksumErrorf("manifest: checksum mismatch: have %s, want %s", checksum, expected)
	}

	return buildManifestFromINI(doc)
}

func buildManifestFromINI(doc *parsedINI) (*Manifest, error) {
	m := New()

	if err := loadBackup(m, doc.section("backup")); err != nil {
		return nil, err
	}
	if err := loadBackupDB(m, doc.section("backup:db")); err != nil {
		return nil, err
	}
	if err := loadBackupOption(m, doc.section("backup:option")); err != nil {
		return nil, err
	}
	if err := loadBackupTarget(m, doc.section("backup:target")); err != nil {
		return nil, err
	}
	if err := loadDB(m, doc.section("db")); err != nil {
		return nil, err
	}

	fileDef, err := loadFileDefaults(m, doc.section("target:file:default"))
	if err != nil {
		return nil, err
	}
	if err := loadFiles(m, doc.section("target:file"), fileDef); err != nil {
		return nil, err
	}

	linkDef, err := loadLinkDefaults(m, doc.section("target:link:default"))
	if err != nil {
		return nil, err
	}
	if err := loadLinks(m, doc.section("target:link"), linkDef); err != nil {
		return nil, err
	}

	pathDef, err := loadPathDefaults(m, doc.section("target:path:default"))
	if err != nil {
		return nil, err
	}
	if err := loadPaths(m, doc.section("target:path"), pathDef); err != nil {
		return nil, err
	}

	m.Sort()
	return m, nil
}

func loadBackup(m *Manifest, section map[string]string) error {
	d := &m.Data

	if raw, ok := section["backup-archive-start"]; ok {
		if err := jsonDecode(raw, &d.ArchiveStart); err != nil {
			return err
		}
	}
	if raw, ok := section["backup-archive-stop"]; ok {
		if err := jsonDecode(raw, &d.ArchiveStop); err != nil {
			return err
		}
	}

	var label string
	if err := jsonDecode(section["backup-label"], &label); err != nil {
		return err
	}
	m.BackupLabelSet(label)

	if raw, ok := section["backup-lsn-start"]; ok {
		if err := jsonDecode(raw, &d.LSNStart); err != nil {
			return err
		}
	}
	if raw, ok := section["backup-lsn-stop"]; ok {
		if err := jsonDecode(raw, &d.LSNStop); err != nil {
			return err
		}
	}
	if raw, ok := section["backup-prior"]; ok {
		if err := jsonDecode(raw, &d.BackupLabelPrior); err != nil {
			return err
		}
	}

	if err := jsonDecode(section["backup-timestamp-copy-start"], &d.BackupTimestampCopyStart); err != nil {
		return err
	}
	if err := jsonDecode(section["backup-timestamp-start"], &d.BackupTimestampStart); err != nil {
		return err
	}
	if err := jsonDecode(section["backup-timestamp-stop"], &d.BackupTimestampStop); err != nil {
		return err
	}

	var backupType string
	if err := jsonDecode(section["backup-type"], &backupType); err != nil {
		return err
	}
	d.BackupType = BackupType(backupType)

	return nil
}

func loadBackupDB(m *Manifest, section map[string]string) error {
	d := &m.Data

	if err := jsonDecode(section["db-id"], &d.PgID); err != nil {
		return err
	}
	if err := jsonDecode(section["db-system-id"], &d.PgSystemID); err != nil {
		return err
	}

	var version string
	if err := jsonDecode(section["db-version"], &version); err != nil {
		return err
	}
	v, err := pgVersionFromStr(version)
	if err != nil {
		return err
	}
	d.PgVersion = v

	return nil
}

func loadBackupOption(m *Manifest, section map[string]string) error {
	d := &m.Data

	if err := jsonDecode(section["option-archive-check"], &d.OptionArchiveCheck); err != nil {
		return err
	}
	if err := jsonDecode(section["option-archive-copy"], &d.OptionArchiveCopy); err != nil {
		return err
	}

	d.OptionStandby = decodeOptionVariant(section, "option-backup-standby")
	d.OptionBufferSize = decodeOptionVariant(section, "option-buffer-size")
	d.OptionChecksumPage = decodeOptionVariant(section, "option-checksum-page")

	if err := jsonDecode(section["option-compress"], &d.OptionCompress); err != nil {
		return err
	}

	d.OptionCompressLevel = decodeOptionVariant(section, "option-compress-level")
	d.OptionCompressLevelNetwork = decodeOptionVariant(section, "option-compress-level-network")
	d.OptionDelta = decodeOptionVariant(section, "option-delta")

	if err := jsonDecode(section["option-hardlink"], &d.OptionHardLink); err != nil {
		return err
	}
	if err := jsonDecode(section["option-online"], &d.OptionOnline); err != nil {
		return err
	}

	d.OptionProcessMax = decodeOptionVariant(section, "option-process-max")

	if raw, ok := section["option-bundle"]; ok {
		if err := jsonDecode(raw, &d.OptionBundle); err != nil {
			return err
		}
	}
	if raw, ok := section["option-block-incr"]; ok {
		if err := jsonDecode(raw, &d.OptionBlockIncr); err != nil {
			return err
		}
	}
	if raw, ok := section["compress-type"]; ok {
		if err := jsonDecode(raw, &d.CompressType); err != nil {
			return err
		}
	}

	return nil
}

func decodeOptionVariant(section map[string]string, key string) OptionVariant {
	raw, ok := section[key]
	if !ok {
		return variant.NewNull()
	}
	var v interface{}
	if err := jsonDecode(raw, &v); err != nil {
		return variant.NewNull()
	}
	return variantFromJSON(v)
}

func loadBackupTarget(m *Manifest, section map[string]string) error {
	for name, raw := range section {
		var obj map[string]interface{}
		if err := jsonDecode(raw, &obj); err != nil {
			return err
		}

		t := Target{Name: name}
		if typ, _ := obj["type"].(string); typ == "link" {
			t.Type = TargetTypeLink
		} else {
			t.Type = TargetTypePath
		}
		if path, ok := obj["path"].(string); ok {
			t.Path = path
		}
		if file, ok := obj["file"].(string); ok {
			t.File = file
		}
		if id, ok := obj["tablespace-id"].(float64); ok {
			t.TablespaceID = uint32(id)
		}
		if tn, ok := obj["tablespace-name"].(string); ok {
			t.TablespaceName = tn
		}

		m.Targets = append(m.Targets, t)
	}
	return nil
}

func loadDB(m *Manifest, section map[string]string) error {
	for name, raw := range section {
		var obj map[string]interface{}
		if err := jsonDecode(raw, &obj); err != nil {
			return err
		}

		db := Database{Name: name}
		if id, ok := obj["db-id"].(float64); ok {
			db.ID = uint32(id)
		}
		if last, ok := obj["db-last-system-id"].(float64); ok {
			db.LastSystemID = uint32(last)
		}

		m.Databases = append(m.Databases, db)
	}
	return nil
}

func loadFileDefaults(m *Manifest, section map[string]string) (fileDefaults, error) {
	var def fileDefaults

	var groupRaw, userRaw interface{}
	if err := jsonDecode(section["group"], &groupRaw); err != nil {
		return def, err
	}
	def.group = ownerFromJSON(m.Owners, groupRaw)

	var modeStr string
	if err := jsonDecode(section["mode"], &modeStr); err != nil {
		return def, err
	}
	mode, err := modeFromJSON(modeStr)
	if err != nil {
		return def, err
	}
	def.mode = mode

	if err := jsonDecode(section["master"], &def.primary); err != nil {
		return def, err
	}

	if err := jsonDecode(section["user"], &userRaw); err != nil {
		return def, err
	}
	def.user = ownerFromJSON(m.Owners, userRaw)

	return def, nil
}

func loadFiles(m *Manifest, section map[string]string, def fileDefaults) error {
	for name, raw := range section {
		var obj map[string]interface{}
		if err := jsonDecode(raw, &obj); err != nil {
			return err
		}

		f := File{
			Name:      name,
			Group:     def.group,
			Mode:      def.mode,
			Primary:   def.primary,
			User:      def.user,
			Reference: referenceRefNone,
		}

		if v, ok := obj["checksum"].(string); ok {
			f.ChecksumSHA1 = v
		}
		if v, ok := obj["checksum-page"].(bool); ok {
			f.ChecksumPage = v
		}
		if v, ok := obj["checksum-page-error"].(bool); ok {
			f.ChecksumPageError = v
		}
		if v, ok := obj["checksum-page-error-list"].([]interface{}); ok {
			list := make([]int64, len(v))
			for i, e := range v {
				if n, ok := e.(float64); ok {
					list[i] = int64(n)
				}
			}
			f.ChecksumPageErrorList = sortedErrorList(list)
		}
		if v, ok := obj["group"]; ok {
			f.Group = ownerFromJSON(m.Owners, v)
		}
		if v, ok := obj["master"].(bool); ok {
			f.Primary = v
		}
		if v, ok := obj["mode"].(string); ok {
			mode, err := modeFromJSON(v)
			if err != nil {
				return err
			}
			f.Mode = mode
		}
		if v, ok := obj["reference"].(string); ok {
			f.Reference = m.References.Intern(v)
		}
		if v, ok := obj["size"].(float64); ok {
			f.Size = uint64(v)
		}
		if v, ok := obj["repo-size"].(float64); ok {
			f.SizeRepo = uint64(v)
		} else {
			f.SizeRepo = f.Size
		}
		if v, ok := obj["timestamp"].(float64); ok {
			f.Timestamp = int64(v)
		}
		if v, ok := obj["user"]; ok {
			f.User = ownerFromJSON(m.Owners, v)
		}
		if v, ok := obj["bundle-id"].(float64); ok {
			f.BundleID = uint32(v)
		}
		if v, ok := obj["bundle-offset"].(float64); ok {
			f.BundleOffset = uint64(v)
		}
		if v, ok := obj["block-incr-size"].(float64); ok {
			f.BlockIncrSize = uint32(v)
		}
		if v, ok := obj["block-incr-checksum-size"].(float64); ok {
			f.BlockIncrChecksumSize = uint32(v)
		}
		if v, ok := obj["block-incr-map-size"].(float64); ok {
			f.BlockIncrMapSize = uint64(v)
		}

		m.Files = append(m.Files, f)
	}
	return nil
}

func loadLinkDefaults(m *Manifest, section map[string]string) (linkDefaults, error) {
	var def linkDefaults
	if len(section) == 0 {
		def.group = ownerRefNone
		def.user = ownerRefNone
		return def, nil
	}

	var groupRaw, userRaw interface{}
	if err := jsonDecode(section["group"], &groupRaw); err != nil {
		return def, err
	}
	def.group = ownerFromJSON(m.Owners, groupRaw)

	if err := jsonDecode(section["user"], &userRaw); err != nil {
		return def, err
	}
	def.user = ownerFromJSON(m.Owners, userRaw)

	return def, nil
}

func loadLinks(m *Manifest, section map[string]string, def linkDefaults) error {
	for name, raw := range section {
		var obj map[string]interface{}
		if err := jsonDecode(raw, &obj); err != nil {
			return err
		}

		l := Link{Name: name, Group: def.group, User: def.user}
		if v, ok := obj["destination"].(string); ok {
			l.Destination = v
		}
		if v, ok := obj["group"]; ok {
			l.Group = ownerFromJSON(m.Owners, v)
		}
		if v, ok := obj["user"]; ok {
			l.User = ownerFromJSON(m.Owners, v)
		}

		m.Links = append(m.Links, l)
	}
	return nil
}

func loadPathDefaults(m *Manifest, section map[string]string) (pathDefaults, error) {
	var def pathDefaults

	var groupRaw, userRaw interface{}
	if err := jsonDecode(section["group"], &groupRaw); err != nil {
		return def, err
	}
	def.group = ownerFromJSON(m.Owners, groupRaw)

	var modeStr string
	if err := jsonDecode(section["mode"], &modeStr); err != nil {
		return def, err
	}
	mode, err := modeFromJSON(modeStr)
	if err != nil {
		return def, err
	}
	def.mode = mode

	if err := jsonDecode(section["user"], &userRaw); err != nil {
		return def, err
	}
	def.user = ownerFromJSON(m.Owners, userRaw)

	return def, nil
}

func loadPaths(m *Manifest, section map[string]string, def pathDefaults) error {
	for name, raw := range section {
		var obj map[string]interface{}
		if err := jsonDecode(raw, &obj); err != nil {
			return err
		}

		p := Path{Name: name, Group: def.group, Mode: def.mode, User: def.user}
		if v, ok := obj["group"]; ok {
			p.Group = ownerFromJSON(m.Owners, v)
		}
		if v, ok := obj["mode"].(string); ok {
			mode, err := modeFromJSON(v)
			if err != nil {
				return err
			}
			p.Mode = mode
		}
		if v, ok := obj["user"]; ok {
			p.User = ownerFromJSON(m.Owners, v)
		}

		m.Paths = append(m.Paths, p)
	}
	return nil
}

// pgVersionFromStr inverts pgVersionToStr: "15" -> 150000, "9.4" -> 90400.
func pgVersionFromStr(s string) (uint32, error) {
	parts := strings.SplitN(s, ".", 2)

	major, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, formatErrorf("manifest: malformed db-version %q: %v", s, err)
	}

	if len(parts) == 1 {
		return uint32(major) * 10000, nil
	}

	minor, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, formatErrorf("manifest: malformed db-version %q: %v", s, err)
	}
	return uint32(major)*10000 + uint32(minor)*100, nil
}
