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
	"crypto/sha1" //nolint:gosec // pgBackRest's manifest checksums are SHA-1 by design, not a cryptographic choice of ours.
	"encoding/hex"
	"hash"
)

// SHA1Filter accumulates pushed bytes into a running SHA-1 digest. It
// backs both the primary content checksum and the repo-side checksum the
// core computes on the same stream.
type SHA1Filter struct {
	h      hash.Hash
	digest []byte
}

// NewSHA1Filter returns a ready-to-push SHA1Filter.
func NewSHA1Filter() *SHA1Filter {
	return &SHA1Filter{h: sha1.New()}
}

// Push implements Filter.
func (f *SHA1Filter) Push(p []byte) error {
	_, err := f.h.Write(p)
	return err
}

// End implements Filter.
func (f *SHA1Filter) End() error {
	f.digest = f.h.Sum(nil)
	return nil
}

// Result implements Filter. TypeSHA1 yields the lowercase hex digest as a
// string, matching the manifest's ChecksumSHA1 field encoding.
func (f *SHA1Filter) Result(id TypeID) (interface{}, bool) {
	if id != TypeSHA1 || f.digest == nil {
		return nil, false
	}
	return hex.EncodeToString(f.digest), true
}
