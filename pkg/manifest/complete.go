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

package manifest

// CompleteResult carries the caller-supplied results of the actual copy
// pass, merged into the manifest header by Complete (§4.2.4).
type CompleteResult struct {
	LSNStart      string
	LSNStop       string
	ArchiveStart  string
	ArchiveStop   string
	TimestampStop int64

	PgID       uint32
	PgSystemID uint64

	// Annotations are free-form caller metadata; entries with an empty
	// value are dropped rather than stored.
	Annotations map[string]string

	// PriorBundleRaw is the prior manifest's bundle-raw flag; Complete
	// verifies this backup's own value matches it, since bundling mode
	// cannot change within a backup set.
	PriorBundleRaw bool
	ThisBundleRaw  bool
}

// Complete performs the complete phase (§4.2.4): it merges the copy
// pass's results into the header and drops empty annotations.
func (m *Manifest) Complete(r CompleteResult) error {
	if r.PriorBundleRaw != r.ThisBundleRaw {
		return paramInvalidErrorf("bundleRaw changed within a backup set: prior=%v this=%v", r.PriorBundleRaw, r.ThisBundleRaw)
	}

	m.Data.LSNStart = r.LSNStart
	m.Data.LSNStop = r.LSNStop
	m.Data.ArchiveStart = r.ArchiveStart
	m.Data.ArchiveStop = r.ArchiveStop
	m.Data.BackupTimestampStop = r.TimestampStop
	m.Data.PgID = r.PgID
	m.Data.PgSystemID = r.PgSystemID

	m.Annotations = make(map[string]string, len(r.Annotations))
	for k, v := range r.Annotations {
		if v != "" {
			m.Annotations[k] = v
		}
	}

	return nil
}
