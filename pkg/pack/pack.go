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

// Package pack implements the tagged, variable-length binary codec used to
// carry the manifest header's auxiliary structures (database list,
// annotation maps, page-checksum error lists) and RPC payloads. The wire
// format is a sequence of tagged fields addressed by a monotonically
// increasing integer id, with gaps (skipped ids) representing NULLs.
package pack

import "fmt"

// Type is the field type recorded in the high nibble of a tag byte.
type Type uint8

// Type-map code assignments. Codes 6 and 11-14 are reserved.
const (
	TypeArray Type = 1
	TypeBool  Type = 2
	TypeI32   Type = 3
	TypeI64   Type = 4
	TypeObj   Type = 5
	TypeStr   Type = 7
	TypeU32   Type = 8
	TypeU64   Type = 9
	TypeStrID Type = 10
	TypeTime  Type = 15
	TypeBin   Type = 16
	TypePack  Type = 17
	TypeMode  Type = 18
)

func (t Type) String() string {
	switch t {
	case TypeArray:
		return "array"
	case TypeBool:
		return "bool"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeObj:
		return "obj"
	case TypeStr:
		return "str"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeStrID:
		return "strid"
	case TypeTime:
		return "time"
	case TypeBin:
		return "bin"
	case TypePack:
		return "pack"
	case TypeMode:
		return "mode"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// typeClass describes how a type's value and size are encoded in/after the tag.
type typeClass struct {
	valueSingleBit bool // bool / str / bin: value is a single presence/truth bit in the tag
	valueMultiBit  bool // ints: value may overflow the tag and continue as a varint
	hasSize        bool // str / bin / pack: a size varint follows when the value bit is set
}

func classOf(t Type) typeClass {
	switch t {
	case TypeArray, TypeObj:
		return typeClass{}
	case TypeBool:
		return typeClass{valueSingleBit: true}
	case TypeI32, TypeI64, TypeU32, TypeU64, TypeStrID, TypeTime, TypeMode:
		return typeClass{valueMultiBit: true}
	case TypeStr, TypeBin:
		return typeClass{valueSingleBit: true, hasSize: true}
	case TypePack:
		return typeClass{valueMultiBit: false, valueSingleBit: false, hasSize: true}
	default:
		return typeClass{}
	}
}

// FormatError signals a malformed pack stream: a bad tag, an id read out of
// order, or a type mismatch between what the caller asked for and what is
// on the wire.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "pack: format error: " + e.Msg }

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}
