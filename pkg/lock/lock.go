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

// Package lock implements the per-stanza lock file (§5): acquired before
// any operation that may mutate repository state, released on exit,
// failing with LockAcquireError if the lock is still held once the
// caller's timeout elapses.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/manifest"
	"github.com/cloudnative-pg/pgbackrest-core/pkg/storage"
)

// pollInterval is how often Acquire re-checks a contended lock path.
const pollInterval = 100 * time.Millisecond

// contents is the lock file's on-disk JSON shape: { execId, percentComplete? }.
type contents struct {
	ExecID          string   `json:"execId"`
	PercentComplete *float64 `json:"percentComplete,omitempty"`
}

// Handle is a held lock; call Release when the protected operation ends.
type Handle struct {
	s      storage.Storage
	path   string
	execID string
}

// Acquire takes the lock at path, generating a fresh execId. If the path
// is already occupied, it polls until either the occupant disappears or
// timeout elapses, at which point it returns a LockAcquireError. ctx
// cancellation aborts the wait early.
func Acquire(ctx context.Context, s storage.Storage, path string, timeout time.Duration) (*Handle, error) {
	execID := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		exists, err := storage.Exists(ctx, s, path)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := writeContents(ctx, s, path, contents{ExecID: execID}); err != nil {
				return nil, err
			}
			return &Handle{s: s, path: path, execID: execID}, nil
		}

		if time.Now().After(deadline) {
			return nil, manifest.NewLockAcquireError("lock: %q is held by another process", path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// SetPercentComplete records backup/restore progress in the lock file, for
// a concurrent status query to read.
func (h *Handle) SetPercentComplete(ctx context.Context, pct float64) error {
	return writeContents(ctx, h.s, h.path, contents{ExecID: h.execID, PercentComplete: &pct})
}

// Release removes the lock file. Releasing an already-released lock is a
// no-op.
func (h *Handle) Release() error {
	return h.s.Remove(h.path)
}

func writeContents(ctx context.Context, s storage.Storage, path string, c contents) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.New("lock: failed to encode lock contents")
	}
	_, err = storage.WriteString(ctx, s, path, string(data))
	return err
}
