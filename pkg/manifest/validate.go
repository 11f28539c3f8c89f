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

import "github.com/cloudnative-pg/pgbackrest-core/internal/corelog"

// Validate performs the validate phase (§4.2.2): it records the delta
// option, scans for future-dated files relative to copyStart (forcing
// delta if one is found), records the copy-start timestamp with the +1
// second online compensation, and stamps the compression algorithm in
// effect for this backup.
func (m *Manifest) Validate(log corelog.Logger, copyStart int64, online bool, delta bool, compressType string) {
	for _, f := range m.Files {
		if f.Timestamp > copyStart {
			if !delta {
				log.Info("enabling delta checksum because a file was found with a future timestamp",
					"file", f.Name, "fileTimestamp", f.Timestamp, "copyStart", copyStart)
			}
			delta = true
			break
		}
	}
	m.Data.OptionDelta = variantFromBool(delta)

	offset := int64(0)
	if online {
		offset = 1
	}
	m.Data.BackupTimestampCopyStart = copyStart + offset
	m.Data.CompressType = compressType
}
