package modbus

import (
	"fmt"
	"sort"
	"strings"
)

// CoilChunk is one contiguous run of encoded coil states, targeting a
// single wire write.
type CoilChunk struct {
	// Address is the coil index of the first bit.
	Address int
	// Bits holds one entry per coil.
	Bits []bool
}

// CoilLayout maps named variables onto a contiguous span of the
// single-bit coil address space. Layouts are immutable after
// construction and safe for concurrent use.
type CoilLayout struct {
	variables []CoilVariable
	index     map[string]int
	address   int
	end       int
}

// NewCoilLayout places the given variables and validates the resulting
// layout. Placement follows the same rules as NewRegisterLayout, with
// sizes counted in bits.
func NewCoilLayout(variables []CoilVariable) (*CoilLayout, error) {
	if len(variables) == 0 {
		return nil, ErrNoVariables
	}
	l := &CoilLayout{
		variables: make([]CoilVariable, len(variables)),
		index:     make(map[string]int, len(variables)),
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

// Address returns the lowest coil index mapped by the layout.
func (l *CoilLayout) Address() int {
	return l.address
}

// End returns the coil index one past the highest mapped coil.
func (l *CoilLayout) End() int {
	return l.end
}

// Size returns the number of coils covered by a full readout.
func (l *CoilLayout) Size() int {
	return l.end - l.address
}

// Contains reports whether the layout maps a variable of that name.
func (l *CoilLayout) Contains(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Names returns the variable names in address order.
func (l *CoilLayout) Names() []string {
	names := make([]string, len(l.variables))
	for i, v := range l.variables {
		names[i] = v.name
	}
	return names
}

// Variables returns the placed variables in address order.
func (l *CoilLayout) Variables() []CoilVariable {
	return append([]CoilVariable(nil), l.variables...)
}

// Encode encodes each value into its own chunk, one per variable, in
// address order. Scalar values (bool or 0/1) are accepted for
// variables of size 1; sequences must match the declared size.
func (l *CoilLayout) Encode(values map[string]any) ([]CoilChunk, error) {
	if err := l.checkNames(values); err != nil {
		return nil, err
	}
	chunks := make([]CoilChunk, 0, len(values))
	for _, v := range l.variables {
		value, ok := values[v.name]
		if !ok {
			continue
		}
		bits, err := v.coerceBits(value)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, CoilChunk{Address: v.address, Bits: bits})
	}
	return chunks, nil
}

// BuildPayload encodes values into the minimal set of contiguous wire
// writes, merging back-to-back variables and splitting across gaps and
// unwritten variables. Chunks are ordered by ascending address.
func (l *CoilLayout) BuildPayload(values map[string]any) ([]CoilChunk, error) {
	chunks, err := l.Encode(values)
	if err != nil {
		return nil, err
	}
	var payload []CoilChunk
	for _, c := range chunks {
		if n := len(payload); n > 0 {
			last := &payload[n-1]
			if last.Address+len(last.Bits) == c.Address {
				last.Bits = append(last.Bits, c.Bits...)
				continue
			}
		}
		payload = append(payload, CoilChunk{Address: c.Address, Bits: append([]bool(nil), c.Bits...)})
	}
	return payload, nil
}

// DecodeCoils decodes a raw bit readout covering the span
// [Address, End). Variables of size 1 decode to a bool, larger ones to
// a bool slice of their declared size. If no variables are named, all
// are returned.
func (l *CoilLayout) DecodeCoils(bits []bool, variables ...string) (map[string]any, error) {
	if len(bits) < l.Size() {
		return nil, fmt.Errorf("%w: readout covers %d coils, layout needs %d", ErrEncoding, len(bits), l.Size())
	}
	selected, err := l.selectVariables(variables)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(selected))
	for _, v := range selected {
		off := v.address - l.address
		if v.size == 1 {
			values[v.name] = bits[off]
			continue
		}
		values[v.name] = append([]bool(nil), bits[off:off+v.size]...)
	}
	return values, nil
}

func (l *CoilLayout) selectVariables(names []string) ([]CoilVariable, error) {
	if len(names) == 0 {
		return l.variables, nil
	}
	var unknown []string
	selected := make([]CoilVariable, 0, len(names))
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

func (l *CoilLayout) checkNames(values map[string]any) error {
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
func (l *CoilLayout) Equal(other *CoilLayout) bool {
	if l == nil || other == nil {
		return l == other
	}
	if len(l.variables) != len(other.variables) {
		return false
	}
	for i, v := range l.variables {
		if v != other.variables[i] {
			return false
		}
	}
	return true
}
