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

// Package blockdelta computes the minimal set of prior-backup reads needed
// to reconstruct a block-incremental file, given its block map and
// (optionally) the current-cluster checksums of the same blocks (§4.5).
package blockdelta

import (
	"bytes"
	"sort"

	"github.com/thoas/go-funk"
)

// BlockMapEntry is one logical block of a file as recorded in its block
// map: which prior-backup reference it lives in, where in that backup's
// repository bundle it is stored, and its checksum.
type BlockMapEntry struct {
	Reference      int32
	BundleID       uint64
	Offset         uint64
	Size           uint64
	SuperBlockSize uint64
	BlockNo        uint32
	Checksum       []byte
}

// Block is one reconstructed block within a planned Read.
type Block struct {
	BlockNo  uint32
	Offset   uint64 // logical offset within the file being restored
	Checksum []byte
}

// SuperBlock groups the consecutive blocks that share a single stored
// repository offset.
type SuperBlock struct {
	Size   uint64
	Blocks []Block
}

// Read is one contiguous range to fetch from a single prior-backup
// reference, covering one or more coalesced super-blocks.
type Read struct {
	Reference   int32
	Offset      uint64
	Size        uint64
	SuperBlocks []SuperBlock
}

// Plan computes the Reads needed to reconstruct a file from blockMap.
// blockChecksum is the current-cluster checksums of the same blocks,
// concatenated and aligned at checksumSize; nil means no local state, so
// every block is needed.
func Plan(blockMap []BlockMapEntry, blockSize uint64, checksumSize int, blockChecksum []byte) []Read {
	blockChecksumSize := 0
	if checksumSize > 0 {
		blockChecksumSize = len(blockChecksum) / checksumSize
	}

	needed := make([]int, 0, len(blockMap))
	for i, b := range blockMap {
		if i >= blockChecksumSize {
			needed = append(needed, i)
			continue
		}
		localSum := blockChecksum[i*checksumSize : (i+1)*checksumSize]
		if !bytes.Equal(b.Checksum, localSum) {
			needed = append(needed, i)
		}
	}

	byReference := make(map[int32][]int, len(needed))
	for _, i := range needed {
		ref := blockMap[i].Reference
		byReference[ref] = append(byReference[ref], i)
	}

	refs := distinctReferences(byReference)

	var reads []Read
	for _, ref := range refs {
		reads = append(reads, planReference(ref, byReference[ref], blockMap, blockSize)...)
	}
	return reads
}

// distinctReferences returns byReference's keys in ascending order. The
// map already guarantees uniqueness; funk.Keys does the reflective
// extraction so the bucketing step reads the same way the rest of this
// module leans on go-funk for slice/set plumbing, rather than a hand
// rolled key-collection loop.
func distinctReferences(byReference map[int32][]int) []int32 {
	refs, ok := funk.Keys(byReference).([]int32)
	if !ok {
		refs = make([]int32, 0, len(byReference))
		for ref := range byReference {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(a, b int) bool { return refs[a] < refs[b] })
	return refs
}

// planReference builds the Reads for a single reference's needed block
// indices, which arrive in increasing file-index order.
func planReference(ref int32, indices []int, blockMap []BlockMapEntry, blockSize uint64) []Read {
	var reads []Read
	var prev BlockMapEntry
	havePrev := false

	for _, i := range indices {
		entry := blockMap[i]
		block := Block{BlockNo: entry.BlockNo, Offset: uint64(i) * blockSize, Checksum: entry.Checksum}

		sameSuperBlock := havePrev && entry.Offset == prev.Offset
		contiguous := havePrev && entry.Offset == prev.Offset+prev.Size
		newRead := !havePrev || !(sameSuperBlock || contiguous)

		if newRead {
			reads = append(reads, Read{Reference: ref, Offset: entry.Offset})
		}
		read := &reads[len(reads)-1]

		if !sameSuperBlock {
			read.SuperBlocks = append(read.SuperBlocks, SuperBlock{Size: entry.SuperBlockSize})
		}
		super := &read.SuperBlocks[len(read.SuperBlocks)-1]
		super.Blocks = append(super.Blocks, block)

		prev = entry
		havePrev = true
	}

	for ri := range reads {
		var total uint64
		for si := range reads[ri].SuperBlocks {
			total += reads[ri].SuperBlocks[si].Size
		}
		reads[ri].Size = total
	}

	return reads
}
