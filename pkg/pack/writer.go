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

package pack

// writeFrame tracks per-container write state: the id of the last field
// written at this nesting depth, and the number of NULLs (skipped ids)
// accumulated since, which get folded into the next field's id delta.
type writeFrame struct {
	idLast    uint32
	nullTotal uint32
}

// Writer encodes a sequence of tagged fields into the pack wire format.
// Field ids must be written in strictly increasing order; skip an id with
// Null to leave a gap that the reader interprets as a NULL value.
type Writer struct {
	buf   []byte
	stack []*writeFrame
}

// NewWriter returns a Writer ready to accept top-level fields. The
// top-level message is itself terminated like a container — call End when
// done.
func NewWriter() *Writer {
	return &Writer{stack: []*writeFrame{{}}}
}

func (w *Writer) top() *writeFrame { return w.stack[len(w.stack)-1] }

// Null records a NULL: the id that would have been used here is skipped
// and folded into the delta of the next field actually written.
func (w *Writer) Null() { w.top().nullTotal++ }

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// writeTag emits the tag byte (and any continuation varints) for field id
// with the given type and pre-shifted value (zig-zag already applied for
// signed integers; 0/1 presence bit for str/bin/bool).
func (w *Writer) writeTag(t Type, id uint32, value uint64) error {
	top := w.top()

	if id == 0 {
		id = top.idLast + top.nullTotal + 1
	} else if id <= top.idLast {
		return formatErrorf("field id %d must be greater than last id %d", id, top.idLast)
	}
	top.nullTotal = 0

	delta := uint64(id - top.idLast - 1)

	var tag uint64
	if t >= 0xF {
		tag = 0xF0
	} else {
		tag = uint64(t) << 4
	}

	cls := classOf(t)
	switch {
	case cls.valueMultiBit:
		if value < 2 {
			tag |= (value & 0x1) << 2
			value >>= 1
			tag |= delta & 0x1
			delta >>= 1
			if delta > 0 {
				tag |= 0x2
			}
		} else {
			tag |= 0x8
			tag |= delta & 0x3
			delta >>= 2
			if delta > 0 {
				tag |= 0x4
			}
		}
	case cls.valueSingleBit:
		tag |= (value & 0x1) << 3
		value >>= 1
		tag |= delta & 0x3
		delta >>= 2
		if delta > 0 {
			tag |= 0x4
		}
	default:
		tag |= delta & 0x7
		delta >>= 3
		if delta > 0 {
			tag |= 0x8
		}
	}

	w.buf = append(w.buf, byte(tag))

	if t >= 0xF {
		w.buf = appendVarUint(w.buf, uint64(t)-0xF)
	}
	if delta > 0 {
		w.buf = appendVarUint(w.buf, delta)
	}
	if value > 0 {
		w.buf = appendVarUint(w.buf, value)
	}

	top.idLast = id
	return nil
}

// WriteBool writes a boolean field. WriteBoolDefault skips the field
// entirely (leaving a NULL gap) when value equals def, so that a reader
// asking for def back gets the same answer without spending a byte.
func (w *Writer) WriteBool(id uint32, value bool) error {
	return w.writeTag(TypeBool, id, boolToUint64(value))
}

func (w *Writer) WriteBoolDefault(id uint32, value, def bool) error {
	if value == def {
		w.Null()
		return nil
	}
	return w.WriteBool(id, value)
}

// WriteI32 / WriteI64 write zig-zag encoded signed integers.
func (w *Writer) WriteI32(id uint32, value int32) error {
	return w.writeTag(TypeI32, id, uint64(zigZagEncode32(value)))
}

func (w *Writer) WriteI64(id uint32, value int64) error {
	return w.writeTag(TypeI64, id, zigZagEncode64(value))
}

// WriteU32 / WriteU64 write unsigned integers directly.
func (w *Writer) WriteU32(id uint32, value uint32) error {
	return w.writeTag(TypeU32, id, uint64(value))
}

func (w *Writer) WriteU64(id uint32, value uint64) error {
	return w.writeTag(TypeU64, id, value)
}

func (w *Writer) WriteU64Default(id uint32, value, def uint64) error {
	if value == def {
		w.Null()
		return nil
	}
	return w.WriteU64(id, value)
}

// WriteMode writes a POSIX permission mode as an unsigned integer.
func (w *Writer) WriteMode(id uint32, value uint32) error {
	return w.writeTag(TypeMode, id, uint64(value))
}

// WriteTime writes a unix-epoch-seconds timestamp, zig-zag encoded like any
// other signed integer.
func (w *Writer) WriteTime(id uint32, value int64) error {
	return w.writeTag(TypeTime, id, zigZagEncode64(value))
}

// WriteStrID writes a compact interned-string id.
func (w *Writer) WriteStrID(id uint32, value uint64) error {
	return w.writeTag(TypeStrID, id, value)
}

// WriteStr writes a string field. Empty strings cost only the tag byte.
func (w *Writer) WriteStr(id uint32, value string) error {
	present := uint64(0)
	if len(value) > 0 {
		present = 1
	}
	if err := w.writeTag(TypeStr, id, present); err != nil {
		return err
	}
	if len(value) > 0 {
		w.buf = appendVarUint(w.buf, uint64(len(value)))
		w.buf = append(w.buf, value...)
	}
	return nil
}

func (w *Writer) WriteStrDefault(id uint32, value, def string) error {
	if value == def {
		w.Null()
		return nil
	}
	return w.WriteStr(id, value)
}

// WriteBin writes a binary field, identical in shape to WriteStr.
func (w *Writer) WriteBin(id uint32, value []byte) error {
	present := uint64(0)
	if len(value) > 0 {
		present = 1
	}
	if err := w.writeTag(TypeBin, id, present); err != nil {
		return err
	}
	if len(value) > 0 {
		w.buf = appendVarUint(w.buf, uint64(len(value)))
		w.buf = append(w.buf, value...)
	}
	return nil
}

// WritePack embeds a standalone, already-terminated nested pack message
// (produced by a prior Writer.End) as a field of the current message.
func (w *Writer) WritePack(id uint32, nested []byte) error {
	if err := w.writeTag(TypePack, id, 0); err != nil {
		return err
	}
	w.buf = appendVarUint(w.buf, uint64(len(nested)))
	w.buf = append(w.buf, nested...)
	return nil
}

// ArrayBegin/ArrayEnd and ObjBegin/ObjEnd open and close a container whose
// own field ids are tracked independently of the parent's.
func (w *Writer) ArrayBegin(id uint32) error {
	if err := w.writeTag(TypeArray, id, 0); err != nil {
		return err
	}
	w.stack = append(w.stack, &writeFrame{})
	return nil
}

func (w *Writer) ArrayEnd() error {
	return w.endContainer()
}

func (w *Writer) ObjBegin(id uint32) error {
	if err := w.writeTag(TypeObj, id, 0); err != nil {
		return err
	}
	w.stack = append(w.stack, &writeFrame{})
	return nil
}

func (w *Writer) ObjEnd() error {
	return w.endContainer()
}

func (w *Writer) endContainer() error {
	if len(w.stack) <= 1 {
		return formatErrorf("not in a container")
	}
	w.buf = appendVarUint(w.buf, 0)
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// End terminates the top-level message and returns its encoded bytes. The
// Writer must not still be inside an Array/Obj.
func (w *Writer) End() ([]byte, error) {
	if len(w.stack) != 1 {
		return nil, formatErrorf("message ended while still inside a container")
	}
	w.buf = appendVarUint(w.buf, 0)
	return w.buf, nil
}
