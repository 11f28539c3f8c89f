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

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Posix is a Storage backed directly by the local filesystem, rooted at
// Base. It is used for single-node operation and by the test suites of
// downstream packages.
type Posix struct {
	Base string
}

// NewPosix returns a Storage rooted at base. base must already exist.
func NewPosix(base string) *Posix {
	return &Posix{Base: base}
}

func (p *Posix) resolve(path string) string {
	return filepath.Join(p.Base, path)
}

// bounded runs fn on its own goroutine and races it against ctx. A ctx
// deadline that elapses first wins: fn's result is discarded (it may
// still be running against the filesystem) and ErrTimeout is returned.
func bounded(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrTimeout
	}
}

// Stat implements Storage.
func (p *Posix) Stat(ctx context.Context, path string) (Info, error) {
	var info Info
	err := bounded(ctx, func() error {
		full := p.resolve(path)
		fi, err := os.Lstat(full)
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotExist
			}
			return fmt.Errorf("storage: stat %q: %w", path, err)
		}

		info = Info{
			Name:    fi.Name(),
			Size:    fi.Size(),
			Mode:    uint32(fi.Mode().Perm()),
			ModTime: fi.ModTime(),
			IsDir:   fi.IsDir(),
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			info.IsLink = true
			dest, err := os.Readlink(full)
			if err != nil {
				return fmt.Errorf("storage: readlink %q: %w", path, err)
			}
			info.LinkDestination = dest
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// OpenRead implements Storage.
func (p *Posix) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	var f *os.File
	err := bounded(ctx, func() error {
		opened, err := os.Open(p.resolve(path))
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotExist
			}
			return fmt.Errorf("storage: open %q for read: %w", path, err)
		}
		f = opened
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OpenWrite implements Storage. The returned writer commits atomically: it
// writes to a temporary file beside the destination and renames it into
// place on Close, so a write that fails or is interrupted partway never
// leaves a truncated file at path.
func (p *Posix) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	full := p.resolve(path)
	var f *os.File
	err := bounded(ctx, func() error {
		dir := filepath.Dir(full)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("storage: create parent directory for %q: %w", path, err)
		}
		tmp, err := os.CreateTemp(dir, filepath.Base(full)+".tmp-*")
		if err != nil {
			return fmt.Errorf("storage: open %q for write: %w", path, err)
		}
		if err := tmp.Chmod(0o640); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("storage: open %q for write: %w", path, err)
		}
		f = tmp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &atomicWriteFile{f: f, finalPath: full}, nil
}

// atomicWriteFile wraps a temp file so that Close renames it over the
// destination only once every write has succeeded; an error anywhere
// along the way discards the temp file instead of publishing it.
type atomicWriteFile struct {
	f         *os.File
	finalPath string
	failed    bool
}

func (a *atomicWriteFile) Write(p []byte) (int, error) {
	n, err := a.f.Write(p)
	if err != nil {
		a.failed = true
	}
	return n, err
}

func (a *atomicWriteFile) Close() error {
	if cerr := a.f.Close(); cerr != nil {
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("storage: write %q: %w", a.finalPath, cerr)
	}
	if a.failed {
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("storage: write %q: write failed before close", a.finalPath)
	}
	if err := os.Rename(a.f.Name(), a.finalPath); err != nil {
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("storage: commit %q: %w", a.finalPath, err)
	}
	return nil
}

// List implements Storage.
func (p *Posix) List(ctx context.Context, dirPath string) ([]Info, error) {
	var names []string
	err := bounded(ctx, func() error {
		full := p.resolve(dirPath)
		entries, err := os.ReadDir(full)
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotExist
			}
			return fmt.Errorf("storage: list %q: %w", dirPath, err)
		}
		names = make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(names))
	for _, name := range names {
		childInfo, err := p.Stat(ctx, filepath.Join(dirPath, name))
		if err != nil {
			return nil, err
		}
		infos = append(infos, childInfo)
	}
	return infos, nil
}

// Remove implements Storage.
func (p *Posix) Remove(path string) error {
	err := os.Remove(p.resolve(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %q: %w", path, err)
	}
	return nil
}
