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

package blockdelta_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/blockdelta"
)

func remoteSum(b byte) []byte { return []byte{b} }

var _ = Describe("Plan", func() {
	It("coalesces contiguous super-blocks and splits on a non-contiguous gap", func() {
		blockMap := []blockdelta.BlockMapEntry{
			{Reference: 3, BundleID: 1, Offset: 0, Size: 100, SuperBlockSize: 100, BlockNo: 0, Checksum: remoteSum(0xb0)},
			{Reference: 3, BundleID: 1, Offset: 100, Size: 100, SuperBlockSize: 100, BlockNo: 0, Checksum: remoteSum(0xb1)},
			{Reference: 5, BundleID: 2, Offset: 500, Size: 200, SuperBlockSize: 200, BlockNo: 0, Checksum: remoteSum(0xb2)},
			{Reference: 3, BundleID: 1, Offset: 800, Size: 100, SuperBlockSize: 100, BlockNo: 0, Checksum: remoteSum(0xb3)},
		}

		// Local checksums differ for all four blocks, so every block is needed.
		local := []byte{0x00, 0x00, 0x00, 0x00}

		reads := blockdelta.Plan(blockMap, 8192, 1, local)
		Expect(reads).To(HaveLen(3))

		Expect(reads[0].Reference).To(Equal(int32(3)))
		Expect(reads[0].Offset).To(Equal(uint64(0)))
		Expect(reads[0].Size).To(Equal(uint64(200)))
		Expect(reads[0].SuperBlocks).To(HaveLen(2))
		Expect(reads[0].SuperBlocks[0].Blocks).To(HaveLen(1))
		Expect(reads[0].SuperBlocks[1].Blocks).To(HaveLen(1))

		Expect(reads[1].Reference).To(Equal(int32(3)))
		Expect(reads[1].Offset).To(Equal(uint64(800)))
		Expect(reads[1].Size).To(Equal(uint64(100)))
		Expect(reads[1].SuperBlocks).To(HaveLen(1))

		Expect(reads[2].Reference).To(Equal(int32(5)))
		Expect(reads[2].Offset).To(Equal(uint64(500)))
		Expect(reads[2].Size).To(Equal(uint64(200)))
	})

	It("treats a nil local checksum buffer as every block needed", func() {
		blockMap := []blockdelta.BlockMapEntry{
			{Reference: 1, Offset: 0, Size: 50, SuperBlockSize: 50, BlockNo: 0, Checksum: remoteSum(1)},
		}
		reads := blockdelta.Plan(blockMap, 50, 20, nil)
		Expect(reads).To(HaveLen(1))
		Expect(reads[0].SuperBlocks[0].Blocks).To(HaveLen(1))
	})

	It("skips blocks whose local checksum already matches", func() {
		blockMap := []blockdelta.BlockMapEntry{
			{Reference: 1, Offset: 0, Size: 50, SuperBlockSize: 50, BlockNo: 0, Checksum: []byte{0xaa}},
			{Reference: 1, Offset: 50, Size: 50, SuperBlockSize: 50, BlockNo: 1, Checksum: []byte{0xbb}},
		}
		// First block's local checksum matches; second's does not.
		local := []byte{0xaa, 0x00}

		reads := blockdelta.Plan(blockMap, 50, 1, local)
		Expect(reads).To(HaveLen(1))
		Expect(reads[0].SuperBlocks).To(HaveLen(1))
		Expect(reads[0].SuperBlocks[0].Blocks).To(HaveLen(1))
		Expect(reads[0].SuperBlocks[0].Blocks[0].Offset).To(Equal(uint64(50)))
	})

	It("iterates references in ascending order even when blocks arrive interleaved", func() {
		blockMap := []blockdelta.BlockMapEntry{
			{Reference: 9, Offset: 0, Size: 10, SuperBlockSize: 10, Checksum: remoteSum(1)},
			{Reference: 2, Offset: 0, Size: 10, SuperBlockSize: 10, Checksum: remoteSum(2)},
		}
		reads := blockdelta.Plan(blockMap, 10, 1, nil)
		Expect(reads).To(HaveLen(2))
		Expect(reads[0].Reference).To(Equal(int32(2)))
		Expect(reads[1].Reference).To(Equal(int32(9)))
	})
})
