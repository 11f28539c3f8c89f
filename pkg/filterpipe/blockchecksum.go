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

import "crypto/sha1" //nolint:gosec // matches the manifest's SHA-1 block checksum, not a security boundary.

// BlockChecksumFilter splits a pushed byte stream into fixed-size blocks
// and emits the first checksumSize bytes of each block's SHA-1 digest,
// concatenated — the local-state buffer blockdelta.Plan compares block
// maps against. A trailing short block (the file's final, partial block)
// still gets a checksum.
type BlockChecksumFilter struct {
	blockSize    int
	checksumSize int
	pending      []byte
	checksums    []byte
}

// NewBlockChecksumFilter returns a filter that checksums blockSize-byte
// blocks, truncating each SHA-1 digest to checksumSize bytes.
func NewBlockChecksumFilter(blockSize, checksumSize int) *BlockChecksumFilter {
	return &BlockChecksumFilter{blockSize: blockSize, checksumSize: checksumSize}
}

// Push implements Filter.
func (f *BlockChecksumFilter) Push(p []byte) error {
	f.pending = append(f.pending, p...)
	for len(f.pending) >= f.blockSize {
		f.checksumBlock(f.pending[:f.blockSize])
		f.pending = f.pending[f.blockSize:]
	}
	return nil
}

// End implements Filter, checksumming any final partial block.
func (f *BlockChecksumFilter) End() error {
	if len(f.pending) > 0 {
		f.checksumBlock(f.pending)
		f.pending = nil
	}
	return nil
}

func (f *BlockChecksumFilter) checksumBlock(block []byte) {
	sum := sha1.Sum(block)
	f.checksums = append(f.checksums, sum[:f.checksumSize]...)
}

// Result implements Filter. TypeBlockChecksum yields the concatenated,
// checksumSize-aligned buffer blockdelta.Plan expects.
func (f *BlockChecksumFilter) Result(id TypeID) (interface{}, bool) {
	if id != TypeBlockChecksum {
		return nil, false
	}
	return f.checksums, true
}
