package bcs

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"unicode/utf8"
)

// Unmarshaler is implemented by types that decode themselves.
type Unmarshaler interface {
	UnmarshalBCS(d *Decoder) error
}

var unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()

// Unmarshal decodes data into v, which must be a non-nil pointer. All of data
// must be consumed.
func Unmarshal(data []byte, v any) error {
	d := NewDecoder(data)
	if err := d.Decode(v); err != nil {
		return err
	}
	if d.Remaining() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, d.Remaining())
	}
	return nil
}

// Decoder reads canonical encodings from a byte slice.
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining reports the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) ReadU8() (uint8, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadU16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) ReadU32() (uint32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte 0x%02x", ErrNonCanonical, b)
	}
}

// ReadULEB128 reads a minimal unsigned LEB128 value that fits in 32 bits.
func (d *Decoder) ReadULEB128() (uint32, error) {
	var v uint64
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := d.ReadU8()
		if err != nil {
			return 0, err
		}
		digit := uint64(b & 0x7f)
		v |= digit << shift
		if b&0x80 != 0 {
			continue
		}
		if shift > 0 && digit == 0 {
			return 0, fmt.Errorf("%w: uleb128 has trailing zero byte", ErrNonCanonical)
		}
		if v > math.MaxUint32 {
			return 0, fmt.Errorf("%w: uleb128 overflows u32", ErrNonCanonical)
		}
		return uint32(v), nil
	}
	return 0, fmt.Errorf("%w: uleb128 longer than 5 bytes", ErrNonCanonical)
}

// ReadLength reads a sequence length prefix.
func (d *Decoder) ReadLength() (int, error) {
	n, err := d.ReadULEB128()
	if err != nil {
		return 0, err
	}
	if n > MaxSequenceLength {
		return 0, fmt.Errorf("%w: %d", ErrTooLong, n)
	}
	return int(n), nil
}

// ReadFixedBytes reads exactly n bytes. The result is a copy.
func (d *Decoder) ReadFixedBytes(n int) ([]byte, error) {
	b, err := d.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadBytes reads a length-prefixed byte vector.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	return d.ReadFixedBytes(n)
}

// ReadString reads a length-prefixed string and rejects invalid UTF-8.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadLength()
	if err != nil {
		return "", err
	}
	b, err := d.next(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrNonCanonical)
	}
	return string(b), nil
}

// Decode reads one value into v, which must be a non-nil pointer.
func (d *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bcs: decode target must be a non-nil pointer, got %T", v)
	}
	return d.decodeValue(rv.Elem())
}

func (d *Decoder) decodeValue(v reflect.Value) error {
	t := v.Type()
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(unmarshalerType) {
		return v.Addr().Interface().(Unmarshaler).UnmarshalBCS(d)
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := d.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Uint8:
		n, err := d.ReadU8()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint16:
		n, err := d.ReadU16()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint32:
		n, err := d.ReadU32()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint64:
		n, err := d.ReadU64()
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Int8:
		n, err := d.ReadU8()
		if err != nil {
			return err
		}
		v.SetInt(int64(int8(n)))
	case reflect.Int16:
		n, err := d.ReadU16()
		if err != nil {
			return err
		}
		v.SetInt(int64(int16(n)))
	case reflect.Int32:
		n, err := d.ReadU32()
		if err != nil {
			return err
		}
		v.SetInt(int64(int32(n)))
	case reflect.Int64:
		n, err := d.ReadU64()
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.String:
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(t.Elem()).Implements(unmarshalerType) {
			b, err := d.ReadBytes()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		n, err := d.ReadLength()
		if err != nil {
			return err
		}
		// Every element takes at least one byte unless it is zero sized, so
		// the remaining input bounds the up-front allocation.
		s := reflect.MakeSlice(t, 0, min(n, d.Remaining()))
		for i := 0; i < n; i++ {
			elem := reflect.New(t.Elem()).Elem()
			if err := d.decodeValue(elem); err != nil {
				return err
			}
			s = reflect.Append(s, elem)
		}
		v.Set(s)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := d.decodeValue(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if skipField(t.Field(i)) {
				continue
			}
			if err := d.decodeValue(v.Field(i)); err != nil {
				return fmt.Errorf("%s.%s: %w", t.Name(), t.Field(i).Name, err)
			}
		}
	case reflect.Pointer:
		tag, err := d.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case 0:
			v.SetZero()
		case 1:
			p := reflect.New(t.Elem())
			if err := d.decodeValue(p.Elem()); err != nil {
				return err
			}
			v.Set(p)
		default:
			return fmt.Errorf("%w: option tag 0x%02x", ErrNonCanonical, tag)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return nil
}
