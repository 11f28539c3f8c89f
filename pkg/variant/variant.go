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

// Package variant implements the dynamic tagged-union value used for
// manifest backup-option fields (bool|int|uint|uint64|string|kv|list) and
// the most-common-value helper used for default-value factoring.
package variant

import "fmt"

// Kind discriminates the payload a Variant carries.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindUint64
	KindString
	KindKV
	KindList
)

// Variant is a fail-closed discriminated union: callers must know (or
// check) the Kind before calling the matching accessor; a mismatched
// accessor panics the way an invalid type assertion would, since it
// indicates a programming error in the caller, not a data error.
type Variant struct {
	kind Kind
	bval bool
	ival int64
	uval uint64
	sval string
	kv   map[string]Variant
	list []Variant
}

func NewNull() Variant                   { return Variant{kind: KindNull} }
func NewBool(v bool) Variant             { return Variant{kind: KindBool, bval: v} }
func NewInt(v int64) Variant             { return Variant{kind: KindInt, ival: v} }
func NewUint(v uint64) Variant           { return Variant{kind: KindUint, uval: v} }
func NewUint64(v uint64) Variant         { return Variant{kind: KindUint64, uval: v} }
func NewString(v string) Variant         { return Variant{kind: KindString, sval: v} }
func NewKV(v map[string]Variant) Variant { return Variant{kind: KindKV, kv: v} }
func NewList(v []Variant) Variant        { return Variant{kind: KindList, list: v} }

func (v Variant) Kind() Kind    { return v.kind }
func (v Variant) IsNull() bool  { return v.kind == KindNull }

func (v Variant) Bool() bool {
	if v.kind != KindBool {
		panic(fmt.Sprintf("variant: Bool() called on kind %d", v.kind))
	}
	return v.bval
}

func (v Variant) Int() int64 {
	if v.kind != KindInt {
		panic(fmt.Sprintf("variant: Int() called on kind %d", v.kind))
	}
	return v.ival
}

func (v Variant) Uint() uint64 {
	if v.kind != KindUint && v.kind != KindUint64 {
		panic(fmt.Sprintf("variant: Uint() called on kind %d", v.kind))
	}
	return v.uval
}

func (v Variant) String() string {
	switch v.kind {
	case KindString:
		return v.sval
	case KindNull:
		return "<null>"
	case KindBool:
		return fmt.Sprintf("%t", v.bval)
	case KindInt:
		return fmt.Sprintf("%d", v.ival)
	case KindUint, KindUint64:
		return fmt.Sprintf("%d", v.uval)
	default:
		return fmt.Sprintf("<variant kind %d>", v.kind)
	}
}

func (v Variant) KV() map[string]Variant {
	if v.kind != KindKV {
		panic(fmt.Sprintf("variant: KV() called on kind %d", v.kind))
	}
	return v.kv
}

func (v Variant) List() []Variant {
	if v.kind != KindList {
		panic(fmt.Sprintf("variant: List() called on kind %d", v.kind))
	}
	return v.list
}

// Equal implements structural equality across kinds, used by the mcv
// helper to bucket identical values together.
func (v Variant) Equal(other Variant) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.bval == other.bval
	case KindInt:
		return v.ival == other.ival
	case KindUint, KindUint64:
		return v.uval == other.uval
	case KindString:
		return v.sval == other.sval
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindKV:
		if len(v.kv) != len(other.kv) {
			return false
		}
		for k, val := range v.kv {
			ov, ok := other.kv[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
