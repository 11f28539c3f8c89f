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

// Package scanner walks a live data directory through a Storage handle and
// streams path/file/link entries to a builder callback, applying the
// exclusion policy and temporary-relation filtering described in §4.1.
package scanner

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// Kind discriminates the four entry shapes the scanner reports.
type Kind int

const (
	KindPath Kind = iota
	KindFile
	KindLink
	KindTablespace
)

// Entry is one record streamed to the Scan callback.
type Entry struct {
	Name string // path relative to the scan root, forward-slash separated
	Kind Kind
	Info storage.Info

	// TablespaceID and TablespaceName are set only on a KindTablespace
	// entry: the oid parsed from the pg_tblspc/<oid> link name, and its
	// display name when the caller supplied one via TablespaceOptions.OIDs.
	TablespaceID   uint32
	TablespaceName string
}

// DefaultTablespaceRegexp matches a tablespace target's own root link,
// "pg_tblspc/<oid>", capturing the oid (§3.1's Target: "a tablespace
// (pg_tblspc/<oid>)").
var DefaultTablespaceRegexp = regexp.MustCompile(`^pg_tblspc/([0-9]+)$`)

// TablespaceOptions supplies the scanner with the two tablespace-related
// inputs §4.1's Scanner Contract lists: "a regex that identifies
// tablespace database paths" and "an optional tablespace oid list".
type TablespaceOptions struct {
	// Regexp identifies a tablespace root link within the walk; its first
	// capture group must be the tablespace's numeric oid. Defaults to
	// DefaultTablespaceRegexp when the caller uses it.
	Regexp *regexp.Regexp

	// OIDs maps a known tablespace oid to its display name. A nil map
	// accepts any oid the walk discovers, with an empty display name; a
	// non-nil map restricts tablespace detection to oids present in it
	// (an oid absent from a non-nil map is reported as an ordinary link
	// instead, e.g. a tablespace dropped since the catalog was probed).
	OIDs map[uint32]string
}

func (o *TablespaceOptions) match(name string) (oid uint32, ok bool) {
	if o == nil || o.Regexp == nil {
		return 0, false
	}
	m := o.Regexp.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	oid = uint32(n)
	if o.OIDs != nil {
		if _, known := o.OIDs[oid]; !known {
			return 0, false
		}
	}
	return oid, true
}

// Exclude splits the caller's exclusion list into the two disjoint kinds
// §4.1 distinguishes: Contents drops every descendant of a prefix but
// keeps the prefix entry itself; Single drops exactly the named entry.
type Exclude struct {
	Contents map[string]bool
	Single   map[string]bool
}

func (e Exclude) excludesContents(name string) bool {
	for prefix := range e.Contents {
		if name == prefix || strings.HasPrefix(name, prefix+"/") {
			return true
		}
	}
	return false
}

func (e Exclude) excludesSingle(name string) bool {
	return e.Single[name]
}

// Callback receives one Entry per non-excluded path/file/link beneath the
// scan root, in whatever order the underlying Storage.List returns its
// entries (callers must not rely on this order; the manifest is sorted
// later).
type Callback func(Entry) error

// Scan walks root via s, reporting every path, file, link, and tablespace
// beneath it that survives the exclusion policy and temporary-relation
// filter. tsOpts may be nil, in which case no pg_tblspc entry is treated
// specially and every symlink (including tablespace roots) is reported as
// an ordinary KindLink.
func Scan(ctx context.Context, s storage.Storage, root string, exclude Exclude, tsOpts *TablespaceOptions, cb Callback) error {
	_, err := s.Stat(ctx, root)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return manifest.NewFileOpenError("scanner: root %q does not exist", root)
		}
		return err
	}

	return walk(ctx, s, root, "", exclude, tsOpts, cb)
}

func walk(ctx context.Context, s storage.Storage, root, rel string, exclude Exclude, tsOpts *TablespaceOptions, cb Callback) error {
	dirPath := path.Join(root, rel)

	entries, err := s.List(ctx, dirPath)
	if err != nil {
		return err
	}

	for _, info := range entries {
		name := info.Name
		if rel != "" {
			name = rel + "/" + name
		}

		if exclude.excludesSingle(name) || exclude.excludesContents(name) {
			continue
		}

		switch {
		case info.IsLink:
			if oid, ok := tsOpts.match(name); ok {
				entry := Entry{Name: name, Kind: KindTablespace, Info: info, TablespaceID: oid}
				if tsOpts.OIDs != nil {
					entry.TablespaceName = tsOpts.OIDs[oid]
				}
				if err := cb(entry); err != nil {
					return err
				}
				if err := walk(ctx, s, root, name, exclude, tsOpts, cb); err != nil {
					return err
				}
				continue
			}
			if err := cb(Entry{Name: name, Kind: KindLink, Info: info}); err != nil {
				return err
			}
		case info.IsDir:
			if err := cb(Entry{Name: name, Kind: KindPath, Info: info}); err != nil {
				return err
			}
			if err := walk(ctx, s, root, name, exclude, tsOpts, cb); err != nil {
				return err
			}
		default:
			if manifest.IsTemporaryRelation(path.Base(name)) {
				continue
			}
			if err := cb(Entry{Name: name, Kind: KindFile, Info: info}); err != nil {
				return err
			}
		}
	}

	return nil
}
