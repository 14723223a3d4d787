package modbus

import (
	"fmt"
	"strconv"
	"strings"
)

type kind int

const (
	kindNumber kind = iota
	kindString
	kindStruct
)

// Field is one entry of a packed bit-field record. Format is "u<k>" or
// "s<k>" with 1 <= k <= 16, designating the bit width within the
// register.
type Field struct {
	Name   string
	Format string
}

func (f Field) width() int {
	w, _ := strconv.Atoi(f.Format[1:])
	return w
}

func (f Field) signed() bool {
	return strings.HasPrefix(f.Format, "s")
}

func (f Field) verify() error {
	if len(f.Format) < 2 || (f.Format[0] != 'u' && f.Format[0] != 's') {
		return fmt.Errorf("%w: field format %q", ErrUnknownType, f.Format)
	}
	w, err := strconv.Atoi(f.Format[1:])
	if err != nil || w < 1 || w > 16 {
		return fmt.Errorf("%w: field format %q", ErrUnknownType, f.Format)
	}
	return nil
}

// Variable is a named span of the register address space. It is a
// closed sum over the number, string and struct kinds; use the Number,
// Str and Struct constructors.
type Variable struct {
	name       string
	kind       kind
	typ        string
	length     int
	fields     []Field
	address    int
	hasAddress bool
}

// Number declares a numeric variable of the given type tag (u16, i16,
// u32, i32, u64, i64, f16, f32 or f64). If no address is given, the
// variable is placed directly after its predecessor in the layout.
func Number(name, typ string, address ...int) Variable {
	return place(Variable{name: name, kind: kindNumber, typ: typ}, address)
}

// Str declares a fixed-length ASCII string variable of length bytes.
func Str(name string, length int, address ...int) Variable {
	return place(Variable{name: name, kind: kindString, length: length}, address)
}

// Struct declares a packed bit-field record occupying one register.
// Fields are packed most significant first, in the order listed; their
// widths must sum to at most 16.
func Struct(name string, fields []Field, address ...int) Variable {
	return place(Variable{name: name, kind: kindStruct, fields: fields}, address)
}

func place(v Variable, address []int) Variable {
	if len(address) > 0 {
		v.address = address[0]
		v.hasAddress = true
	}
	return v
}

// Name returns the variable's name.
func (v Variable) Name() string {
	return v.name
}

// Address returns the register index of the variable. The address is
// only meaningful once the variable is part of a layout.
func (v Variable) Address() int {
	return v.address
}

// Size returns the number of registers occupied by the variable.
func (v Variable) Size() int {
	switch v.kind {
	case kindString:
		return (v.length + 1) / 2
	case kindStruct:
		return 1
	default:
		return numberSpecs[v.typ].bits / 16
	}
}

func (v Variable) end() int {
	return v.address + v.Size()
}

func (v Variable) verify() error {
	switch v.kind {
	case kindNumber:
		if _, ok := numberSpecs[v.typ]; !ok {
			return fmt.Errorf("%w: %q (variable %q)", ErrUnknownType, v.typ, v.name)
		}
	case kindString:
		if v.length < 1 {
			return fmt.Errorf("%w: string %q has length %d", ErrInvalidSize, v.name, v.length)
		}
	case kindStruct:
		total := 0
		for _, f := range v.fields {
			if err := f.verify(); err != nil {
				return err
			}
			total += f.width()
		}
		if total > 16 {
			return fmt.Errorf("%w: fields of %q occupy %d bits", ErrEncoding, v.name, total)
		}
	}
	return nil
}

func (v Variable) encode(b *payloadBuilder, value any) error {
	switch v.kind {
	case kindString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: expected string for %q, got %T", ErrEncoding, v.name, value)
		}
		return b.addString(v.length, s)
	case kindStruct:
		values, err := toFieldValues(value)
		if err != nil {
			return fmt.Errorf("%s (variable %q)", err, v.name)
		}
		return b.addStruct(v.fields, values)
	default:
		return b.addNumber(v.typ, value)
	}
}

func (v Variable) decode(d *payloadDecoder) (any, error) {
	switch v.kind {
	case kindString:
		return d.decodeString(v.length)
	case kindStruct:
		return d.decodeStruct(v.fields)
	default:
		return d.decodeNumber(v.typ)
	}
}

func (v Variable) equal(other Variable) bool {
	if v.name != other.name || v.kind != other.kind || v.typ != other.typ ||
		v.length != other.length || v.address != other.address || len(v.fields) != len(other.fields) {
		return false
	}
	for i, f := range v.fields {
		if f != other.fields[i] {
			return false
		}
	}
	return true
}

func toFieldValues(value any) (map[string]int64, error) {
	switch m := value.(type) {
	case map[string]int64:
		return m, nil
	case map[string]int:
		values := make(map[string]int64, len(m))
		for k, v := range m {
			values[k] = int64(v)
		}
		return values, nil
	case map[string]any:
		values := make(map[string]int64, len(m))
		for k, v := range m {
			neg, mag, err := toInteger(v)
			if err != nil {
				return nil, err
			}
			values[k] = int64(mag)
			if neg {
				values[k] = -int64(mag)
			}
		}
		return values, nil
	}
	return nil, fmt.Errorf("%w: expected field values, got %T", ErrEncoding, value)
}

// CoilVariable is a named run of consecutive bits in the coil or
// discrete-input address space. A variable of size 1 holds a scalar
// bool; larger sizes hold a bool sequence of exactly that length.
type CoilVariable struct {
	name       string
	size       int
	address    int
	hasAddress bool
}

// Coil declares a coil variable of the given size in bits. If no
// address is given, the variable is placed directly after its
// predecessor in the layout.
func Coil(name string, size int, address ...int) CoilVariable {
	v := CoilVariable{name: name, size: size}
	if len(address) > 0 {
		v.address = address[0]
		v.hasAddress = true
	}
	return v
}

// Name returns the variable's name.
func (v CoilVariable) Name() string {
	return v.name
}

// Address returns the coil index of the variable. The address is only
// meaningful once the variable is part of a layout.
func (v CoilVariable) Address() int {
	return v.address
}

// Size returns the number of bits occupied by the variable.
func (v CoilVariable) Size() int {
	return v.size
}

func (v CoilVariable) end() int {
	return v.address + v.size
}

func (v CoilVariable) verify() error {
	if v.size < 1 {
		return fmt.Errorf("%w: coil %q has size %d", ErrInvalidSize, v.name, v.size)
	}
	return nil
}

// coerceBits converts a coil value into its bit run. Scalars (bool or
// 0/1 integers) are accepted for variables of size 1; sequences must
// match the declared size exactly.
func (v CoilVariable) coerceBits(value any) ([]bool, error) {
	if v.size == 1 {
		b, err := toBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s (variable %q)", err, v.name)
		}
		return []bool{b}, nil
	}
	var bits []bool
	switch s := value.(type) {
	case []bool:
		bits = s
	case []int:
		bits = make([]bool, len(s))
		for i, x := range s {
			b, err := toBool(x)
			if err != nil {
				return nil, fmt.Errorf("%s (variable %q)", err, v.name)
			}
			bits[i] = b
		}
	case []any:
		bits = make([]bool, len(s))
		for i, x := range s {
			b, err := toBool(x)
			if err != nil {
				return nil, fmt.Errorf("%s (variable %q)", err, v.name)
			}
			bits[i] = b
		}
	default:
		return nil, fmt.Errorf("%w: expected %d bits for %q, got %T", ErrEncoding, v.size, v.name, value)
	}
	if len(bits) != v.size {
		return nil, fmt.Errorf("%w: expected %d bits for %q, got %d", ErrEncoding, v.size, v.name, len(bits))
	}
	return bits, nil
}

func toBool(value any) (bool, error) {
	switch b := value.(type) {
	case bool:
		return b, nil
	case int:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	case int64:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	}
	return false, fmt.Errorf("%w: expected bool, got %#v", ErrEncoding, value)
}
