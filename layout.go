package modbus

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultUnit is the unit id addressed when callers do not care about
// multi-slave setups.
const DefaultUnit = 0

// The four sub-spaces of a slave's address space.
const (
	SpaceHoldingRegisters = "holding_registers"
	SpaceInputRegisters   = "input_registers"
	SpaceCoils            = "coils"
	SpaceDiscreteInputs   = "discrete_inputs"
)

// lookup order used by Find and Where, matching the declaration order
// of the record form.
var spaces = []string{
	SpaceHoldingRegisters,
	SpaceInputRegisters,
	SpaceCoils,
	SpaceDiscreteInputs,
}

// SlaveContextLayout bundles the sub-space layouts of one slave. Any of
// the four may be nil.
type SlaveContextLayout struct {
	HoldingRegisters *RegisterLayout
	InputRegisters   *RegisterLayout
	Coils            *CoilLayout
	DiscreteInputs   *CoilLayout
}

func (s *SlaveContextLayout) contains(name, space string) bool {
	switch space {
	case SpaceHoldingRegisters:
		return s.HoldingRegisters != nil && s.HoldingRegisters.Contains(name)
	case SpaceInputRegisters:
		return s.InputRegisters != nil && s.InputRegisters.Contains(name)
	case SpaceCoils:
		return s.Coils != nil && s.Coils.Contains(name)
	case SpaceDiscreteInputs:
		return s.DiscreteInputs != nil && s.DiscreteInputs.Contains(name)
	}
	return false
}

// ServerContextLayout maps unit ids to their slave layouts.
type ServerContextLayout struct {
	slaves map[int]*SlaveContextLayout
}

// NewServerContextLayout returns a layout over the given slaves. The
// map is copied; the layout is immutable afterwards.
func NewServerContextLayout(slaves map[int]*SlaveContextLayout) *ServerContextLayout {
	copied := make(map[int]*SlaveContextLayout, len(slaves))
	for unit, slave := range slaves {
		copied[unit] = slave
	}
	return &ServerContextLayout{slaves: copied}
}

// Units returns the declared unit ids in ascending order.
func (l *ServerContextLayout) Units() []int {
	units := make([]int, 0, len(l.slaves))
	for unit := range l.slaves {
		units = append(units, unit)
	}
	sort.Ints(units)
	return units
}

// Slave returns the layout of the given unit.
func (l *ServerContextLayout) Slave(unit int) (*SlaveContextLayout, error) {
	slave, ok := l.slaves[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unit %d", ErrNoSuchSlaveLayout, unit)
	}
	return slave, nil
}

// Find returns the unit and sub-space which store the named variable.
func (l *ServerContextLayout) Find(name string) (unit int, space string, err error) {
	for _, unit := range l.Units() {
		for _, space := range spaces {
			if l.slaves[unit].contains(name, space) {
				return unit, space, nil
			}
		}
	}
	return 0, "", fmt.Errorf("%w: %s", ErrVariableNotFound, name)
}

// Where returns the sub-space of the given unit which stores the named
// variable.
func (l *ServerContextLayout) Where(name string, unit int) (string, error) {
	slave, err := l.Slave(unit)
	if err != nil {
		return "", err
	}
	for _, space := range spaces {
		if slave.contains(name, space) {
			return space, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrVariableNotFound, name)
}

// HoldingRegisterLayout returns the holding register layout of the
// given unit.
func (l *ServerContextLayout) HoldingRegisterLayout(unit int) (*RegisterLayout, error) {
	slave, err := l.Slave(unit)
	if err != nil {
		return nil, err
	}
	if slave.HoldingRegisters == nil {
		return nil, fmt.Errorf("%w: %s of unit %d", ErrMissingSubLayout, SpaceHoldingRegisters, unit)
	}
	return slave.HoldingRegisters, nil
}

// InputRegisterLayout returns the input register layout of the given
// unit.
func (l *ServerContextLayout) InputRegisterLayout(unit int) (*RegisterLayout, error) {
	slave, err := l.Slave(unit)
	if err != nil {
		return nil, err
	}
	if slave.InputRegisters == nil {
		return nil, fmt.Errorf("%w: %s of unit %d", ErrMissingSubLayout, SpaceInputRegisters, unit)
	}
	return slave.InputRegisters, nil
}

// CoilLayout returns the coil layout of the given unit.
func (l *ServerContextLayout) CoilLayout(unit int) (*CoilLayout, error) {
	slave, err := l.Slave(unit)
	if err != nil {
		return nil, err
	}
	if slave.Coils == nil {
		return nil, fmt.Errorf("%w: %s of unit %d", ErrMissingSubLayout, SpaceCoils, unit)
	}
	return slave.Coils, nil
}

// DiscreteInputLayout returns the discrete input layout of the given
// unit.
func (l *ServerContextLayout) DiscreteInputLayout(unit int) (*CoilLayout, error) {
	slave, err := l.Slave(unit)
	if err != nil {
		return nil, err
	}
	if slave.DiscreteInputs == nil {
		return nil, fmt.Errorf("%w: %s of unit %d", ErrMissingSubLayout, SpaceDiscreteInputs, unit)
	}
	return slave.DiscreteInputs, nil
}

// FieldData is the record form of a bit-field entry.
type FieldData struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
}

// RegisterVariableData is the record form of a register variable. Type
// is a numeric tag, "str" or "struct"; a nil address means automatic
// placement.
type RegisterVariableData struct {
	Name    string      `yaml:"name"`
	Type    string      `yaml:"type"`
	Length  int         `yaml:"length,omitempty"`
	Fields  []FieldData `yaml:"fields,omitempty"`
	Address *int        `yaml:"address,omitempty"`
}

// RegisterLayoutData is the record form of a RegisterLayout.
type RegisterLayoutData struct {
	Variables []RegisterVariableData `yaml:"variables"`
	ByteOrder string                 `yaml:"byteorder,omitempty"`
	WordOrder string                 `yaml:"wordorder,omitempty"`
}

// CoilVariableData is the record form of a coil variable. A zero size
// defaults to 1.
type CoilVariableData struct {
	Name    string `yaml:"name"`
	Size    int    `yaml:"size,omitempty"`
	Address *int   `yaml:"address,omitempty"`
}

// CoilLayoutData is the record form of a CoilLayout.
type CoilLayoutData []CoilVariableData

// SlaveLayoutData is the record form of a SlaveContextLayout.
type SlaveLayoutData struct {
	HoldingRegisters *RegisterLayoutData `yaml:"holding_registers,omitempty"`
	InputRegisters   *RegisterLayoutData `yaml:"input_registers,omitempty"`
	Coils            CoilLayoutData      `yaml:"coils,omitempty"`
	DiscreteInputs   CoilLayoutData      `yaml:"discrete_inputs,omitempty"`
}

// ServerLayoutData is the record form of a ServerContextLayout.
type ServerLayoutData struct {
	Slaves map[int]SlaveLayoutData `yaml:"slaves"`
}

// LoadRegisterLayout reconstructs a layout from its record form.
func LoadRegisterLayout(data RegisterLayoutData) (*RegisterLayout, error) {
	variables := make([]Variable, len(data.Variables))
	for i, d := range data.Variables {
		var v Variable
		switch d.Type {
		case "str":
			v = Str(d.Name, d.Length)
		case "struct":
			fields := make([]Field, len(d.Fields))
			for j, f := range d.Fields {
				fields[j] = Field{Name: f.Name, Format: f.Format}
			}
			v = Struct(d.Name, fields)
		default:
			v = Number(d.Name, d.Type)
		}
		if d.Address != nil {
			v.address = *d.Address
			v.hasAddress = true
		}
		variables[i] = v
	}
	return NewRegisterLayout(variables, Order(data.ByteOrder), Order(data.WordOrder))
}

// LoadCoilLayout reconstructs a layout from its record form.
func LoadCoilLayout(data CoilLayoutData) (*CoilLayout, error) {
	variables := make([]CoilVariable, len(data))
	for i, d := range data {
		size := d.Size
		if size == 0 {
			size = 1
		}
		v := Coil(d.Name, size)
		if d.Address != nil {
			v.address = *d.Address
			v.hasAddress = true
		}
		variables[i] = v
	}
	return NewCoilLayout(variables)
}

// LoadSlaveContextLayout reconstructs a slave layout from its record
// form.
func LoadSlaveContextLayout(data SlaveLayoutData) (*SlaveContextLayout, error) {
	slave := &SlaveContextLayout{}
	var err error
	if data.HoldingRegisters != nil {
		if slave.HoldingRegisters, err = LoadRegisterLayout(*data.HoldingRegisters); err != nil {
			return nil, err
		}
	}
	if data.InputRegisters != nil {
		if slave.InputRegisters, err = LoadRegisterLayout(*data.InputRegisters); err != nil {
			return nil, err
		}
	}
	if data.Coils != nil {
		if slave.Coils, err = LoadCoilLayout(data.Coils); err != nil {
			return nil, err
		}
	}
	if data.DiscreteInputs != nil {
		if slave.DiscreteInputs, err = LoadCoilLayout(data.DiscreteInputs); err != nil {
			return nil, err
		}
	}
	return slave, nil
}

// LoadServerContextLayout reconstructs a server layout from its record
// form.
func LoadServerContextLayout(data ServerLayoutData) (*ServerContextLayout, error) {
	slaves := make(map[int]*SlaveContextLayout, len(data.Slaves))
	for unit, d := range data.Slaves {
		slave, err := LoadSlaveContextLayout(d)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", unit, err)
		}
		slaves[unit] = slave
	}
	return NewServerContextLayout(slaves), nil
}

// ParseServerLayout reconstructs a server layout from a YAML document
// of its record form.
func ParseServerLayout(buf []byte) (*ServerContextLayout, error) {
	var data ServerLayoutData
	if err := yaml.Unmarshal(buf, &data); err != nil {
		return nil, fmt.Errorf("modbus: parsing layout: %w", err)
	}
	return LoadServerContextLayout(data)
}

// Dump returns the record form of the layout. Addresses are recorded
// explicitly, so the dump round-trips through LoadRegisterLayout.
func (l *RegisterLayout) Dump() RegisterLayoutData {
	data := RegisterLayoutData{
		Variables: make([]RegisterVariableData, len(l.variables)),
		ByteOrder: string(l.byteorder),
		WordOrder: string(l.wordorder),
	}
	for i, v := range l.variables {
		address := v.address
		d := RegisterVariableData{Name: v.name, Address: &address}
		switch v.kind {
		case kindString:
			d.Type = "str"
			d.Length = v.length
		case kindStruct:
			d.Type = "struct"
			d.Fields = make([]FieldData, len(v.fields))
			for j, f := range v.fields {
				d.Fields[j] = FieldData{Name: f.Name, Format: f.Format}
			}
		default:
			d.Type = v.typ
		}
		data.Variables[i] = d
	}
	return data
}

// Dump returns the record form of the layout. Addresses are recorded
// explicitly, so the dump round-trips through LoadCoilLayout.
func (l *CoilLayout) Dump() CoilLayoutData {
	data := make(CoilLayoutData, len(l.variables))
	for i, v := range l.variables {
		address := v.address
		data[i] = CoilVariableData{Name: v.name, Size: v.size, Address: &address}
	}
	return data
}
