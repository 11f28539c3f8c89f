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

import "strings"

// LinkCheck enforces §3.2 invariant 4: no two link targets may have paths
// where one is a prefix of the other, except when both are file (not
// path) links. Build phase 6.
func (m *Manifest) LinkCheck() error {
	var linkTargets []Target
	for _, t := range m.Targets {
		if t.Type == TargetTypeLink {
			linkTargets = append(linkTargets, t)
		}
	}

	for i := 0; i < len(linkTargets); i++ {
		for j := i + 1; j < len(linkTargets); j++ {
			a, b := linkTargets[i], linkTargets[j]
			if a.IsFileLink() && b.IsFileLink() {
				continue
			}
			if pathOverlaps(a.Path, b.Path) {
				return linkDestinationErrorf(
					"link target %q (path %q) overlaps link target %q (path %q)",
					a.Name, a.Path, b.Name, b.Path)
			}
		}
	}
	return nil
}

// pathOverlaps reports whether a/ is a prefix of b/ or vice versa.
func pathOverlaps(a, b string) bool {
	if a == b {
		return true
	}
	aDir := strings.TrimSuffix(a, "/") + "/"
	bDir := strings.TrimSuffix(b, "/") + "/"
	return strings.HasPrefix(bDir, aDir) || strings.HasPrefix(aDir, bDir)
}
