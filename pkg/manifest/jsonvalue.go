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

import (
	"encoding/json"
	"fmt"

	"github.com/cloudnative-pg/pgbackrest-core/pkg/variant"
)

// jsonEncode marshals v the same way jsonFromStr/jsonFromBool/jsonFromInt64
// do in the source: quoted strings, bare booleans/integers, and objects
// with their keys sorted (encoding/json already does this for map values).
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		assertErrorf("value %#v is not JSON-encodable: %v", v, err)
	}
	return string(b)
}

func jsonDecode(raw string, out interface{}) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return formatErrorf("manifest: malformed value %q: %v", raw, err)
	}
	return nil
}

// ownerJSON encodes an owner reference the way the source does: the JSON
// literal false when the owner is unknown, otherwise the quoted name.
func ownerJSON(owners *OwnerList, ref OwnerRef) interface{} {
	if ref == ownerRefNone {
		return false
	}
	return owners.Get(ref)
}

// ownerFromJSON is the inverse of ownerJSON: it accepts either a JSON
// string (interned into owners) or the literal false.
func ownerFromJSON(owners *OwnerList, raw interface{}) OwnerRef {
	switch v := raw.(type) {
	case string:
		return owners.Intern(v)
	default:
		return ownerRefNone
	}
}

// modeJSON formats a mode as the four-digit octal string the manifest
// persists it as (e.g. 0600 -> "0600").
func modeJSON(mode uint32) string {
	return fmt.Sprintf("%04o", mode)
}

func modeFromJSON(raw string) (uint32, error) {
	var mode uint32
	if _, err := fmt.Sscanf(raw, "%o", &mode); err != nil {
		return 0, formatErrorf("manifest: malformed mode %q: %v", raw, err)
	}
	return mode, nil
}

// variantToJSON converts an OptionVariant to a value encoding/json can
// marshal directly, matching jsonFromVar's shape for each Kind.
func variantToJSON(v variant.Variant) interface{} {
	switch v.Kind() {
	case variant.KindBool:
		return v.Bool()
	case variant.KindInt:
		return v.Int()
	case variant.KindUint, variant.KindUint64:
		return v.Uint()
	case variant.KindString:
		return v.String()
	case variant.KindList:
		out := make([]interface{}, len(v.List()))
		for i, e := range v.List() {
			out[i] = variantToJSON(e)
		}
		return out
	case variant.KindKV:
		out := make(map[string]interface{}, len(v.KV()))
		for k, e := range v.KV() {
			out[k] = variantToJSON(e)
		}
		return out
	default:
		return nil
	}
}

// variantFromJSON is the decode-side counterpart of variantToJSON. Only the
// scalar kinds the manifest's option fields actually use are reconstructed.
func variantFromJSON(raw interface{}) variant.Variant {
	switch v := raw.(type) {
	case bool:
		return variant.NewBool(v)
	case float64:
		if v == float64(int64(v)) {
			return variant.NewInt(int64(v))
		}
		return variant.NewInt(int64(v))
	case string:
		return variant.NewString(v)
	default:
		return variant.NewNull()
	}
}
