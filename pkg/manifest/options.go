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

import "github.com/cloudnative-pg/pgbackrest-core/pkg/variant"

// OptionVariant is the dynamically typed shape backup-option header
// fields take in the original design (bool|int|uint|uint64|string):
// some options (standby, buffer-size, checksum-page, compress-level,
// compress-level-network, delta, process-max) may be recorded as an
// explicit caller override or left unset, in which case the option's
// default applies at call sites. An unset OptionVariant is the zero
// value, equivalent to variant.NewNull().
type OptionVariant = variant.Variant

func variantFromBool(v bool) OptionVariant { return variant.NewBool(v) }
