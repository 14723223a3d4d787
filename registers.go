package modbus

import (
	"fmt"
	"sort"
	"strings"
)

// Payload is one contiguous region of encoded register data, targeting
// a single wire write.
type Payload struct {
	// Address is the register index of the first byte pair.
	Address int
	// Bytes holds two bytes per register, in the layout's byte order.
	Bytes []byte
}

// Quantity returns the number of registers covered by the payload.
func (p Payload) Quantity() int {
	return len(p.Bytes) / 2
}

// Registers returns the payload as big-endian 16-bit integers, the
// form expected by the in-process datastore.
func (p Payload) Registers() []uint16 {
	return bytesToRegisters(p.Bytes)
}

// RegisterLayout maps named variables onto a contiguous span of the
// 16-bit register address space. Layouts are immutable after
// construction and safe for concurrent use.
type RegisterLayout struct {
	variables []Variable
	index     map[string]int
	byteorder Order
	wordorder Order
	address   int
	end       int
}

// NewRegisterLayout places the given variables and validates the
// resulting layout. A variable without an explicit address is placed
// directly after its predecessor; explicit addresses may leave gaps but
// must never overlap. Empty orders default to big-endian.
func NewRegisterLayout(variables []Variable, byteorder, wordorder Order) (*RegisterLayout, error) {
	if byteorder == "" {
		byteorder = BigEndian
	}
	if wordorder == "" {
		wordorder = BigEndian
	}
	if !byteorder.valid() || !wordorder.valid() {
		return nil, fmt.Errorf("%w: order must be %q or %q", ErrEncoding, BigEndian, LittleEndian)
	}
	if len(variables) == 0 {
		return nil, ErrNoVariables
	}
	l := &RegisterLayout{
		variables: make([]Variable, len(variables)),
		index:     make(map[string]int, len(variables)),
		byteorder: byteorder,
		wordorder: wordorder,
	}
	next := 0
	for i, v := range variables {
		if err := v.verify(); err != nil {
			return nil, err
		}
		if !v.hasAddress {
			v.address = next
			v.hasAddress = true
		}
		switch {
		case v.address < 0:
			return nil, fmt.Errorf("%w: variable %q has address %d", ErrNegativeAddress, v.name, v.address)
		case v.address < next:
			return nil, fmt.Errorf("%w: variable %q at %d overlaps the store ending at %d", ErrInvalidAddressLayout, v.name, v.address, next)
		}
		if _, ok := l.index[v.name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVariable, v.name)
		}
		next = v.end()
		l.variables[i] = v
		l.index[v.name] = i
	}
	l.address = l.variables[0].address
	l.end = next
	return l, nil
}

// Address returns the lowest register index mapped by the layout.
func (l *RegisterLayout) Address() int {
	return l.address
}

// End returns the register index one past the highest mapped register.
func (l *RegisterLayout) End() int {
	return l.end
}

// Size returns the number of registers covered by a full readout.
func (l *RegisterLayout) Size() int {
	return l.end - l.address
}

// Contains reports whether the layout maps a variable of that name.
func (l *RegisterLayout) Contains(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Names returns the variable names in address order.
func (l *RegisterLayout) Names() []string {
	names := make([]string, len(l.variables))
	for i, v := range l.variables {
		names[i] = v.name
	}
	return names
}

// Variables returns the placed variables in address order.
func (l *RegisterLayout) Variables() []Variable {
	return append([]Variable(nil), l.variables...)
}

// Encode encodes each value into its own payload, one per variable,
// in address order. values may be a subset of the layout's names.
func (l *RegisterLayout) Encode(values map[string]any) ([]Payload, error) {
	if err := l.checkNames(values); err != nil {
		return nil, err
	}
	payloads := make([]Payload, 0, len(values))
	for _, v := range l.variables {
		value, ok := values[v.name]
		if !ok {
			continue
		}
		b := newPayloadBuilder(l.byteorder, l.wordorder)
		if err := v.encode(b, value); err != nil {
			return nil, err
		}
		payloads = append(payloads, Payload{Address: v.address, Bytes: b.bytes()})
	}
	return payloads, nil
}

// BuildPayload encodes values into the minimal set of contiguous wire
// writes: variables which occur back-to-back in memory are merged into
// one payload, while gaps and unwritten variables split the output.
// Payloads are ordered by ascending address.
func (l *RegisterLayout) BuildPayload(values map[string]any) ([]Payload, error) {
	chunks, err := l.Encode(values)
	if err != nil {
		return nil, err
	}
	return mergePayloads(chunks), nil
}

func mergePayloads(chunks []Payload) []Payload {
	var payloads []Payload
	for _, c := range chunks {
		if n := len(payloads); n > 0 {
			last := &payloads[n-1]
			if last.Address+last.Quantity() == c.Address {
				last.Bytes = append(last.Bytes, c.Bytes...)
				continue
			}
		}
		payloads = append(payloads, Payload{Address: c.Address, Bytes: append([]byte(nil), c.Bytes...)})
	}
	return payloads
}

// DecodeRegisters decodes a raw register readout covering the span
// [Address, End). The registers are big-endian 16-bit integers as
// stored by the datastore; the layout's byte and word order govern the
// re-interpretation. If no variables are named, all are returned.
func (l *RegisterLayout) DecodeRegisters(registers []uint16, variables ...string) (map[string]any, error) {
	return l.DecodeBytes(registersToBytes(registers), variables...)
}

// DecodeBytes is DecodeRegisters for a flat byte buffer, two bytes per
// register, as returned by a wire read.
func (l *RegisterLayout) DecodeBytes(buf []byte, variables ...string) (map[string]any, error) {
	if len(buf) < 2*l.Size() {
		return nil, fmt.Errorf("%w: readout covers %d registers, layout needs %d", ErrEncoding, len(buf)/2, l.Size())
	}
	selected, err := l.selectVariables(variables)
	if err != nil {
		return nil, err
	}
	d := newPayloadDecoder(buf, l.byteorder, l.wordorder)
	values := make(map[string]any, len(selected))
	for _, v := range selected {
		d.seek(2 * (v.address - l.address))
		value, err := v.decode(d)
		if err != nil {
			return nil, err
		}
		values[v.name] = value
	}
	return values, nil
}

func (l *RegisterLayout) selectVariables(names []string) ([]Variable, error) {
	if len(names) == 0 {
		return l.variables, nil
	}
	var unknown []string
	selected := make([]Variable, 0, len(names))
	for _, name := range names {
		i, ok := l.index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, l.variables[i])
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, strings.Join(unknown, ", "))
	}
	return selected, nil
}

func (l *RegisterLayout) checkNames(values map[string]any) error {
	var unknown []string
	for name := range values {
		if _, ok := l.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrVariableNotFound, strings.Join(unknown, ", "))
	}
	return nil
}

// Equal reports structural equality of the two layouts.
func (l *RegisterLayout) Equal(other *RegisterLayout) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.byteorder != other.byteorder || l.wordorder != other.wordorder || len(l.variables) != len(other.variables) {
		return false
	}
	for i, v := range l.variables {
		if !v.equal(other.variables[i]) {
			return false
		}
	}
	return true
}
