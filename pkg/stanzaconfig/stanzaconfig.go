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

// Package stanzaconfig loads the per-stanza repository configuration
// every build/save/load call needs: where the repository lives, what
// compression and cipher it uses, and how long backups are retained. It
// is ambient configuration, not a CLI surface — cmd/pgbackrest-manifest
// reads one of these files before constructing a Storage and a Builder.
package stanzaconfig

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CompressionType names a supported repository compression codec.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zst"
)

// Retention controls how many backups of each type the repository
// keeps before older ones are eligible for expiration. A zero value
// means unlimited.
type Retention struct {
	Full int `yaml:"full"`
	Diff int `yaml:"diff"`
}

// Config is the stanza's repository configuration.
type Config struct {
	StanzaName  string          `yaml:"stanza"`
	RepoPath    string          `yaml:"repoPath"`
	Compression CompressionType `yaml:"compression"`
	// CipherPassphraseRef names an external secret (e.g. an environment
	// variable or secret-store key) holding the cipher passphrase; the
	// passphrase itself is never stored in this file (§6.3).
	CipherPassphraseRef string    `yaml:"cipherPassphraseRef,omitempty"`
	Retention           Retention `yaml:"retention"`
	// ChecksumSize is the length in bytes of each block-delta checksum
	// (§4.5); pgBackRest defaults to a 6-byte truncated SHA-1.
	ChecksumSize int `yaml:"checksumSize"`
	// BlockSize is the logical block size in bytes used by the
	// block-delta planner (§4.5); Postgres pages are 8192 bytes.
	BlockSize int `yaml:"blockSize"`
	// IOTimeoutSeconds bounds every storage read/write/list/stat the
	// stanza performs (§5/§7's configurable wall-clock I/O timeout);
	// zero disables the bound.
	IOTimeoutSeconds int `yaml:"ioTimeoutSeconds"`
}

// IOTimeout returns the configured storage I/O timeout as a
// time.Duration, following the same seconds-in-config,
// duration-at-point-of-use convention the rest of this config uses.
func (c Config) IOTimeout() time.Duration {
	return time.Duration(c.IOTimeoutSeconds) * time.Second
}

// DefaultChecksumSize and DefaultBlockSize match pgBackRest's own
// defaults for block-incremental backups.
const (
	DefaultChecksumSize = 6
	DefaultBlockSize    = 8192
)

// Parse decodes a stanza configuration document, filling in the package
// defaults for any field the document omits.
func Parse(data []byte) (Config, error) {
	cfg := Config{
		Compression:  CompressionNone,
		ChecksumSize: DefaultChecksumSize,
		BlockSize:    DefaultBlockSize,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("stanzaconfig: %w", err)
	}
	if cfg.StanzaName == "" {
		return Config{}, fmt.Errorf("stanzaconfig: stanza name is required")
	}
	if cfg.RepoPath == "" {
		return Config{}, fmt.Errorf("stanzaconfig: repoPath is required")
	}
	return cfg, nil
}
