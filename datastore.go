package modbus

import (
	"fmt"
	"sync"
)

// Datastore is the in-process backing store of a single unit: two
// 16-bit register spaces and two single-bit spaces, all zero-based.
// The primitive accessors are individually ordered; multi-register
// operations are not atomic across calls, so readers may observe torn
// values unless they synchronise externally.
type Datastore struct {
	mu       sync.RWMutex
	holding  []uint16
	input    []uint16
	coils    []bool
	discrete []bool
}

// NewDatastore returns a store with size cells in each of the four
// sub-spaces, all zeroed.
func NewDatastore(size int) *Datastore {
	return &Datastore{
		holding:  make([]uint16, size),
		input:    make([]uint16, size),
		coils:    make([]bool, size),
		discrete: make([]bool, size),
	}
}

func checkRange(address, quantity, size int) error {
	if address < 0 || quantity < 0 || address+quantity > size {
		return fmt.Errorf("%w: [%d, %d) outside [0, %d)", ErrOutOfRange, address, address+quantity, size)
	}
	return nil
}

// HoldingRegisters returns a copy of the holding registers in
// [address, address+quantity).
func (ds *Datastore) HoldingRegisters(address, quantity int) ([]uint16, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if err := checkRange(address, quantity, len(ds.holding)); err != nil {
		return nil, err
	}
	return append([]uint16(nil), ds.holding[address:address+quantity]...), nil
}

// SetHoldingRegisters writes values to the holding registers starting
// at address.
func (ds *Datastore) SetHoldingRegisters(address int, values []uint16) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := checkRange(address, len(values), len(ds.holding)); err != nil {
		return err
	}
	copy(ds.holding[address:], values)
	return nil
}

// InputRegisters returns a copy of the input registers in
// [address, address+quantity).
func (ds *Datastore) InputRegisters(address, quantity int) ([]uint16, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if err := checkRange(address, quantity, len(ds.input)); err != nil {
		return nil, err
	}
	return append([]uint16(nil), ds.input[address:address+quantity]...), nil
}

// SetInputRegisters writes values to the input registers starting at
// address.
func (ds *Datastore) SetInputRegisters(address int, values []uint16) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := checkRange(address, len(values), len(ds.input)); err != nil {
		return err
	}
	copy(ds.input[address:], values)
	return nil
}

// Coils returns a copy of the coils in [address, address+quantity).
func (ds *Datastore) Coils(address, quantity int) ([]bool, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if err := checkRange(address, quantity, len(ds.coils)); err != nil {
		return nil, err
	}
	return append([]bool(nil), ds.coils[address:address+quantity]...), nil
}

// SetCoils writes values to the coils starting at address.
func (ds *Datastore) SetCoils(address int, values []bool) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := checkRange(address, len(values), len(ds.coils)); err != nil {
		return err
	}
	copy(ds.coils[address:], values)
	return nil
}

// DiscreteInputs returns a copy of the discrete inputs in
// [address, address+quantity).
func (ds *Datastore) DiscreteInputs(address, quantity int) ([]bool, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if err := checkRange(address, quantity, len(ds.discrete)); err != nil {
		return nil, err
	}
	return append([]bool(nil), ds.discrete[address:address+quantity]...), nil
}

// SetDiscreteInputs writes values to the discrete inputs starting at
// address.
func (ds *Datastore) SetDiscreteInputs(address int, values []bool) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := checkRange(address, len(values), len(ds.discrete)); err != nil {
		return err
	}
	copy(ds.discrete[address:], values)
	return nil
}

// ServerDatastore maps unit ids to their datastores.
type ServerDatastore struct {
	units map[int]*Datastore
}

// NewServerDatastore returns a datastore over the given units. The map
// is copied.
func NewServerDatastore(units map[int]*Datastore) *ServerDatastore {
	copied := make(map[int]*Datastore, len(units))
	for unit, ds := range units {
		copied[unit] = ds
	}
	return &ServerDatastore{units: copied}
}

// Unit returns the datastore of the given unit.
func (s *ServerDatastore) Unit(unit int) (*Datastore, error) {
	ds, ok := s.units[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unit %d", ErrNoSuchSlave, unit)
	}
	return ds, nil
}
