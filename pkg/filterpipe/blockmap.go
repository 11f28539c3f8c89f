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

package filterpipe

import (
	"github.com/cloudnative-pg/pgbackrest-core/pkg/blockdelta"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/pack"
)

// Field ids used inside each block-map entry object. Not part of any
// retrieved wire format (the block-map encoder lives outside the files
// this module's reference material retrieved) — chosen to follow this
// module's own pack field-id conventions, one per BlockMapEntry member.
const (
	blockMapFieldReference      = 1
	blockMapFieldBundleID       = 2
	blockMapFieldOffset         = 3
	blockMapFieldSize           = 4
	blockMapFieldSuperBlockSize = 5
	blockMapFieldBlockNo        = 6
	blockMapFieldChecksum       = 7
)

// EncodeBlockMap packs entries into the trailing block-map blob described
// in §6.2: a pack-encoded array of per-block objects.
func EncodeBlockMap(entries []blockdelta.BlockMapEntry) ([]byte, error) {
	w := pack.NewWriter()
	if err := w.ArrayBegin(1); err != nil {
		return nil, err
	}
	for i, e := range entries {
		id := uint32(i + 1) //nolint:gosec // i is bounded by the file's own block count.
		if err := w.ObjBegin(id); err != nil {
			return nil, err
		}
		if err := w.WriteI32(blockMapFieldReference, e.Reference); err != nil {
			return nil, err
		}
		if err := w.WriteU64(blockMapFieldBundleID, e.BundleID); err != nil {
			return nil, err
		}
		if err := w.WriteU64(blockMapFieldOffset, e.Offset); err != nil {
			return nil, err
		}
		if err := w.WriteU64(blockMapFieldSize, e.Size); err != nil {
			return nil, err
		}
		if err := w.WriteU64(blockMapFieldSuperBlockSize, e.SuperBlockSize); err != nil {
			return nil, err
		}
		if err := w.WriteU32(blockMapFieldBlockNo, e.BlockNo); err != nil {
			return nil, err
		}
		if err := w.WriteBin(blockMapFieldChecksum, e.Checksum); err != nil {
			return nil, err
		}
		if err := w.ObjEnd(); err != nil {
			return nil, err
		}
	}
	if err := w.ArrayEnd(); err != nil {
		return nil, err
	}
	return w.End()
}

// DecodeBlockMap reverses EncodeBlockMap, reading the trailing blob
// located per §6.2 (seek to bundleOffset+sizeRepo-blockIncrMapSize, read
// blockIncrMapSize bytes) and already extracted by the caller.
func DecodeBlockMap(data []byte) ([]blockdelta.BlockMapEntry, error) {
	r := pack.NewReader(data)
	if err := r.ArrayBegin(1); err != nil {
		return nil, err
	}

	var entries []blockdelta.BlockMapEntry
	for {
		more, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if err := r.ObjBegin(r.ID()); err != nil {
			return nil, err
		}

		var e blockdelta.BlockMapEntry
		if e.Reference, err = r.ReadI32(blockMapFieldReference, 0); err != nil {
			return nil, err
		}
		if e.BundleID, err = r.ReadU64(blockMapFieldBundleID, 0); err != nil {
			return nil, err
		}
		if e.Offset, err = r.ReadU64(blockMapFieldOffset, 0); err != nil {
			return nil, err
		}
		if e.Size, err = r.ReadU64(blockMapFieldSize, 0); err != nil {
			return nil, err
		}
		if e.SuperBlockSize, err = r.ReadU64(blockMapFieldSuperBlockSize, 0); err != nil {
			return nil, err
		}
		if e.BlockNo, err = r.ReadU32(blockMapFieldBlockNo, 0); err != nil {
			return nil, err
		}
		if e.Checksum, err = r.ReadBin(blockMapFieldChecksum, nil); err != nil {
			return nil, err
		}

		if err := r.ObjEnd(); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := r.ArrayEnd(); err != nil {
		return nil, err
	}
	if err := r.End(); err != nil {
		return nil, err
	}
	return entries, nil
}
