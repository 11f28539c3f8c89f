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

// Package storage abstracts the filesystem-like surface the manifest and
// block-delta packages need: stat, open-for-read, open-for-write, list,
// remove. Callers receive a Storage value rather than reaching for os.*
// directly, so a repository-backed implementation can stand in for local
// POSIX storage without touching the core packages.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned by Stat/OpenRead when the requested path is
// absent. Wrap with fmt.Errorf("%w", ...) when adding path context.
var ErrNotExist = errors.New("storage: path does not exist")

// ErrTimeout is returned by Stat/OpenRead/OpenWrite/List when ctx's
// deadline elapses before the operation completes. Callers that need the
// manifest package's FileReadError/FileWriteError taxonomy wrap this
// sentinel at the call site.
var ErrTimeout = errors.New("storage: operation timed out")

// Info describes a single directory entry as returned by Stat/List.
type Info struct {
	Name    string
	Size    int64
	Mode    uint32
	ModTime time.Time
	IsDir   bool
	IsLink  bool
	// LinkDestination is set only when IsLink is true.
	LinkDestination string
}

// Storage is the capability the manifest builder and scanner depend on.
// Implementations must be safe for concurrent use by multiple goroutines
// reading distinct paths. Every method but Remove takes a ctx: a deadline
// set on it bounds that single operation, surfacing as ErrTimeout if it
// elapses first (§5/§7's configurable wall-clock I/O timeout).
type Storage interface {
	// Stat returns metadata for path, or ErrNotExist if it is absent.
	Stat(ctx context.Context, path string) (Info, error)

	// OpenRead opens path for reading. The caller must Close the result.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens path for writing, creating parent directories as
	// needed and truncating any existing content. The caller must Close
	// the result to flush and commit the write.
	OpenWrite(ctx context.Context, path string) (io.WriteCloser, error)

	// List returns the immediate (non-recursive) entries of dirPath.
	List(ctx context.Context, dirPath string) ([]Info, error)

	// Remove deletes path. Removing an absent path is not an error.
	Remove(path string) error
}
