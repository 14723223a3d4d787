package modbus

// LocalContext reads and writes typed variables against an in-process
// datastore. The datastore keeps each register as a single big-endian
// 16-bit integer; the facade converts between that representation and
// the layout's wire encoding on every access.
//
// Each primitive datastore access is ordered on its own, but a
// multi-register variable is not written or read atomically. Callers
// sharing a datastore with a server or daemon must hold their own lock
// if they need stronger guarantees.
type LocalContext struct {
	ds     *ServerDatastore
	layout *ServerContextLayout
}

// NewLocalContext combines a datastore and its layout.
func NewLocalContext(ds *ServerDatastore, layout *ServerContextLayout) *LocalContext {
	return &LocalContext{ds: ds, layout: layout}
}

// Layout returns the server layout backing the context.
func (c *LocalContext) Layout() *ServerContextLayout {
	return c.layout
}

// GetHoldingRegisters reads variables from the holding registers of
// unit (all variables if none are named). The readout always covers
// the layout's complete range.
func (c *LocalContext) GetHoldingRegisters(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.HoldingRegisterLayout(unit)
	if err != nil {
		return nil, err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return nil, err
	}
	registers, err := store.HoldingRegisters(layout.Address(), layout.Size())
	if err != nil {
		return nil, err
	}
	return layout.DecodeRegisters(registers, variables...)
}

// SetHoldingRegisters writes values to the holding registers of unit,
// one datastore write per payload chunk.
func (c *LocalContext) SetHoldingRegisters(unit int, values map[string]any) error {
	layout, err := c.layout.HoldingRegisterLayout(unit)
	if err != nil {
		return err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return err
	}
	payloads, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := store.SetHoldingRegisters(p.Address, p.Registers()); err != nil {
			return err
		}
	}
	return nil
}

// GetInputRegisters reads variables from the input registers of unit.
func (c *LocalContext) GetInputRegisters(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.InputRegisterLayout(unit)
	if err != nil {
		return nil, err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return nil, err
	}
	registers, err := store.InputRegisters(layout.Address(), layout.Size())
	if err != nil {
		return nil, err
	}
	return layout.DecodeRegisters(registers, variables...)
}

// SetInputRegisters writes values to the input registers of unit.
func (c *LocalContext) SetInputRegisters(unit int, values map[string]any) error {
	layout, err := c.layout.InputRegisterLayout(unit)
	if err != nil {
		return err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return err
	}
	payloads, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := store.SetInputRegisters(p.Address, p.Registers()); err != nil {
			return err
		}
	}
	return nil
}

// GetCoils reads variables from the coils of unit.
func (c *LocalContext) GetCoils(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.CoilLayout(unit)
	if err != nil {
		return nil, err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return nil, err
	}
	bits, err := store.Coils(layout.Address(), layout.Size())
	if err != nil {
		return nil, err
	}
	return layout.DecodeCoils(bits, variables...)
}

// SetCoils writes values to the coils of unit.
func (c *LocalContext) SetCoils(unit int, values map[string]any) error {
	layout, err := c.layout.CoilLayout(unit)
	if err != nil {
		return err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return err
	}
	chunks, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := store.SetCoils(chunk.Address, chunk.Bits); err != nil {
			return err
		}
	}
	return nil
}

// GetDiscreteInputs reads variables from the discrete inputs of unit.
func (c *LocalContext) GetDiscreteInputs(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.DiscreteInputLayout(unit)
	if err != nil {
		return nil, err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return nil, err
	}
	bits, err := store.DiscreteInputs(layout.Address(), layout.Size())
	if err != nil {
		return nil, err
	}
	return layout.DecodeCoils(bits, variables...)
}

// SetDiscreteInputs writes values to the discrete inputs of unit.
func (c *LocalContext) SetDiscreteInputs(unit int, values map[string]any) error {
	layout, err := c.layout.DiscreteInputLayout(unit)
	if err != nil {
		return err
	}
	store, err := c.ds.Unit(unit)
	if err != nil {
		return err
	}
	chunks, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := store.SetDiscreteInputs(chunk.Address, chunk.Bits); err != nil {
			return err
		}
	}
	return nil
}
