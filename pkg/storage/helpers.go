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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Exists reports whether path is present in s.
func Exists(ctx context.Context, s Storage, path string) (bool, error) {
	_, err := s.Stat(ctx, path)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadAll reads the full content of path.
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	r, err := s.OpenRead(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteString writes content to path, returning changed=true only if the
// new content differs from whatever was previously stored there (or the
// path didn't exist). This mirrors the no-op-on-identical-write behavior
// the manifest text serializer relies on to avoid needless rewrites.
func WriteString(ctx context.Context, s Storage, path, content string) (changed bool, err error) {
	existing, err := ReadAll(ctx, s, path)
	if err == nil && bytes.Equal(existing, []byte(content)) {
		return false, nil
	}
	if err != nil && !errors.Is(err, ErrNotExist) {
		return false, err
	}

	w, err := s.OpenWrite(ctx, path)
	if err != nil {
		return false, err
	}
	if _, err := io.WriteString(w, content); err != nil {
		_ = w.Close()
		return false, fmt.Errorf("storage: write %q: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return false, err
	}
	return true, nil
}

// Copy copies src to dst within s.
func Copy(ctx context.Context, s Storage, src, dst string) error {
	r, err := s.OpenRead(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := s.OpenWrite(ctx, dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: copy %q to %q: %w", src, dst, err)
	}
	return w.Close()
}
