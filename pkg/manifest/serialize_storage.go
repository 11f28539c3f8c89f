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
	"context"
	"errors"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// copySuffix names the redundant sibling pgBackRest keeps next to every
// manifest and info file, tried when the primary is missing or corrupt.
const copySuffix = ".copy"

// LoadFile loads the manifest at path, falling back to path+".copy" if the
// primary is missing or its checksum does not verify (§4.4, Scenario F). If
// both attempts fail, the returned error names both paths. A ctx deadline
// exceeded while reading either file surfaces as a FileReadError (§5/§7's
// configurable I/O timeout).
func LoadFile(ctx context.Context, s storage.Storage, path string) (*Manifest, error) {
	primary, primaryErr := loadOne(ctx, s, path)
	if primaryErr == nil {
		return primary, nil
	}

	copyPath := path + copySuffix
	fromCopy, copyErr := loadOne(ctx, s, copyPath)
	if copyErr == nil {
		return fromCopy, nil
	}

	return nil, fileOpenErrorf(
		"manifest: unable to load %q (%v) or %q (%v)", path, primaryErr, copyPath, copyErr)
}

func loadOne(ctx context.Context, s storage.Storage, path string) (*Manifest, error) {
	data, err := storage.ReadAll(ctx, s, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, &FileMissingError{msg: "manifest: " + path + " does not exist"}
		}
		if errors.Is(err, storage.ErrTimeout) {
			return nil, NewFileReadError("manifest: timed out reading %q", path)
		}
		return nil, err
	}
	return Load(data)
}

// SaveFile renders m and writes it to path and its ".copy" sibling, the way
// the source keeps the two in sync on every save. A ctx deadline exceeded
// while writing either file surfaces as a FileWriteError; the on-repo file
// remains untouched because Storage.OpenWrite commits atomically.
func SaveFile(ctx context.Context, s storage.Storage, path string, m *Manifest) error {
	data, err := m.Save()
	if err != nil {
		return err
	}

	if _, err := storage.WriteString(ctx, s, path, string(data)); err != nil {
		if errors.Is(err, storage.ErrTimeout) {
			return NewFileWriteError("manifest: timed out writing %q", path)
		}
		return err
	}
	if _, err := storage.WriteString(ctx, s, path+copySuffix, string(data)); err != nil {
		if errors.Is(err, storage.ErrTimeout) {
			return NewFileWriteError("manifest: timed out writing %q", path+copySuffix)
		}
		return err
	}
	return nil
}
