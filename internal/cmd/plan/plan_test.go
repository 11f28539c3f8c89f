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

package plan

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // matches the checksum size under test, not a security boundary.
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/blockdelta"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/filterpipe"
)

var _ = Describe("localBlockChecksums", func() {
	It("returns nil for a file that does not exist", func() {
		sums, err := localBlockChecksums("/nonexistent/path/does-not-exist", 8, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(sums).To(BeNil())
	})

	It("checksums a file's blocks, including a final partial block", func() {
		dir, err := os.MkdirTemp("", "plan-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		path := dir + "/data"
		Expect(os.WriteFile(path, bytes.Repeat([]byte("x"), 20), 0o600)).To(Succeed())

		sums, err := localBlockChecksums(path, 8, 6)
		Expect(err).NotTo(HaveOccurred())
		// 20 bytes at an 8-byte block size: two full blocks and one
		// 4-byte partial block, each truncated to a 6-byte checksum.
		Expect(sums).To(HaveLen(3 * 6))
	})
})

var _ = Describe("Run", func() {
	It("plans zero reads when the local content matches the saved block map", func() {
		dir, err := os.MkdirTemp("", "plan-test-repo")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		content := bytes.Repeat([]byte("a"), 8)
		sum := sha1.Sum(content)

		entries := []blockdelta.BlockMapEntry{
			{Reference: 0, Offset: 0, Size: 8, SuperBlockSize: 8, BlockNo: 0, Checksum: sum[:6]},
		}
		blob, err := filterpipe.EncodeBlockMap(entries)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(dir+"/block.map", blob, 0o600)).To(Succeed())
		Expect(os.WriteFile(dir+"/data", content, 0o600)).To(Succeed())
		Expect(os.WriteFile(dir+"/stanza.yaml",
			[]byte("stanza: main\nrepoPath: "+dir+"\nblockSize: 8\nchecksumSize: 6\n"), 0o600)).To(Succeed())

		Expect(Run(context.Background(), dir+"/stanza.yaml", "block.map", dir+"/data")).To(Succeed())
	})

	It("plans a read when the local content no longer matches", func() {
		dir, err := os.MkdirTemp("", "plan-test-repo-mismatch")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		oldSum := sha1.Sum(bytes.Repeat([]byte("a"), 8))
		entries := []blockdelta.BlockMapEntry{
			{Reference: 0, Offset: 0, Size: 8, SuperBlockSize: 8, BlockNo: 0, Checksum: oldSum[:6]},
		}
		blob, err := filterpipe.EncodeBlockMap(entries)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(dir+"/block.map", blob, 0o600)).To(Succeed())
		Expect(os.WriteFile(dir+"/data", bytes.Repeat([]byte("b"), 8), 0o600)).To(Succeed())
		Expect(os.WriteFile(dir+"/stanza.yaml",
			[]byte("stanza: main\nrepoPath: "+dir+"\nblockSize: 8\nchecksumSize: 6\n"), 0o600)).To(Succeed())

		Expect(Run(context.Background(), dir+"/stanza.yaml", "block.map", dir+"/data")).To(Succeed())
	})
})
