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

// Package filterpipe models the core's view of a stream-filter pipeline
// (§4.6): bounded push-bytes input, a get-result-by-type-id output
// contract, and end-of-stream signaling. Concrete filters the core drives
// directly live here (SHA-1, block checksum, block-map reader); cipher
// and compression stay external per §1 and are represented only by their
// wire framing constants (§6.3).
package filterpipe

import "github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"

// TypeID identifies a filter's result, or a filter itself when chaining.
type TypeID int

const (
	TypeSHA1 TypeID = iota
	TypeBlockChecksum
	TypeBlockMap
)

// Filter is the capability interface the core drives: push bounded input
// buffers, signal end-of-stream, then retrieve a result by type id. A
// filter that produces no result for a given id returns ok=false.
type Filter interface {
	Push(p []byte) error
	End() error
	Result(id TypeID) (interface{}, bool)
}

const (
	// CipherMagic prefixes every salted cipher block (§6.3).
	CipherMagic = "Salted__"
	// CipherSaltSize is the length in bytes of the PKCS5 salt that
	// immediately follows CipherMagic.
	CipherSaltSize = 8
	// CipherHeaderSize is the combined length of CipherMagic and its salt.
	CipherHeaderSize = len(CipherMagic) + CipherSaltSize
)

// SplitCipherHeader validates and strips a salted cipher header from the
// front of data, returning the salt and the remaining ciphertext. The
// actual AES-256-CBC decrypt/encrypt stays external (§1 scope note); this
// only implements the framing both sides must agree on.
func SplitCipherHeader(data []byte) (salt []byte, rest []byte, err error) {
	if len(data) < CipherHeaderSize {
		return nil, nil, manifest.NewCipherError("filterpipe: truncated cipher header (%d bytes)", len(data))
	}
	if string(data[:len(CipherMagic)]) != CipherMagic {
		return nil, nil, manifest.NewCipherError("filterpipe: bad cipher magic")
	}
	salt = data[len(CipherMagic):CipherHeaderSize]
	rest = data[CipherHeaderSize:]
	return salt, rest, nil
}
