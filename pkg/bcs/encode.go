// Package bcs implements the Binary Canonical Serialization format used by Sui
// for everything that gets hashed or signed.
//
// Integers are little-endian and fixed width, sequence lengths are ULEB128,
// structs are their fields in declaration order and options are a 0x00/0x01
// tag followed by the value. There are no type tags: the decoder always knows
// the shape it expects.
package bcs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// MaxSequenceLength is the largest length prefix accepted for byte strings
// and sequences.
const MaxSequenceLength = 1<<31 - 1

var (
	ErrUnsupportedType = errors.New("bcs: unsupported type")
	ErrNonCanonical    = errors.New("bcs: non-canonical encoding")
	ErrTrailingBytes   = errors.New("bcs: trailing bytes")
	ErrTooLong         = errors.New("bcs: sequence too long")
)

// Marshaler is implemented by types that encode themselves.
type Marshaler interface {
	MarshalBCS(e *Encoder) error
}

var marshalerType = reflect.TypeOf((*Marshaler)(nil)).Elem()

// Marshal returns the canonical encoding of v.
func Marshal(v any) ([]byte, error) {
	e := NewEncoder()
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Encoder appends canonical encodings to an in-memory buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded bytes. The slice aliases the encoder buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteU16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) WriteU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) WriteU64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteU8(1)
		return
	}
	e.WriteU8(0)
}

// WriteULEB128 writes v as an unsigned LEB128 varint. Go's uvarint format is
// the same encoding and is always minimal.
func (e *Encoder) WriteULEB128(v uint32) {
	e.buf = binary.AppendUvarint(e.buf, uint64(v))
}

// WriteLength writes a sequence length prefix.
func (e *Encoder) WriteLength(n int) error {
	if n < 0 || n > MaxSequenceLength {
		return fmt.Errorf("%w: %d", ErrTooLong, n)
	}
	e.WriteULEB128(uint32(n))
	return nil
}

// WriteFixedBytes writes b with no length prefix.
func (e *Encoder) WriteFixedBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteBytes writes a length-prefixed byte vector.
func (e *Encoder) WriteBytes(b []byte) error {
	if err := e.WriteLength(len(b)); err != nil {
		return err
	}
	e.WriteFixedBytes(b)
	return nil
}

// WriteString writes a length-prefixed UTF-8 string.
func (e *Encoder) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrNonCanonical)
	}
	if err := e.WriteLength(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

// Encode appends the encoding of v.
func (e *Encoder) Encode(v any) error {
	if v == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	// Copy into an addressable value so pointer-receiver Marshalers are found.
	rv := reflect.New(reflect.TypeOf(v)).Elem()
	rv.Set(reflect.ValueOf(v))
	return e.encodeValue(rv)
}

func (e *Encoder) encodeValue(v reflect.Value) error {
	t := v.Type()
	if t.Kind() != reflect.Pointer {
		if t.Implements(marshalerType) {
			return v.Interface().(Marshaler).MarshalBCS(e)
		}
		if v.CanAddr() && reflect.PointerTo(t).Implements(marshalerType) {
			return v.Addr().Interface().(Marshaler).MarshalBCS(e)
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		e.WriteBool(v.Bool())
	case reflect.Uint8:
		e.WriteU8(uint8(v.Uint()))
	case reflect.Uint16:
		e.WriteU16(uint16(v.Uint()))
	case reflect.Uint32:
		e.WriteU32(uint32(v.Uint()))
	case reflect.Uint64:
		e.WriteU64(v.Uint())
	case reflect.Int8:
		e.WriteU8(uint8(v.Int()))
	case reflect.Int16:
		e.WriteU16(uint16(v.Int()))
	case reflect.Int32:
		e.WriteU32(uint32(v.Int()))
	case reflect.Int64:
		e.WriteU64(uint64(v.Int()))
	case reflect.String:
		return e.WriteString(v.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(marshalerType) {
			return e.WriteBytes(v.Bytes())
		}
		if err := e.WriteLength(v.Len()); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := e.encodeValue(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := e.encodeValue(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if skipField(t.Field(i)) {
				continue
			}
			if err := e.encodeValue(v.Field(i)); err != nil {
				return fmt.Errorf("%s.%s: %w", t.Name(), t.Field(i).Name, err)
			}
		}
	case reflect.Pointer:
		if v.IsNil() {
			e.WriteU8(0)
			return nil
		}
		e.WriteU8(1)
		return e.encodeValue(v.Elem())
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return nil
}

func skipField(f reflect.StructField) bool {
	return !f.IsExported() || f.Tag.Get("bcs") == "-"
}
