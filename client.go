package modbus

import (
	"errors"

	gomodbus "github.com/goburrow/modbus"
)

// Transport is the wire interface driven by the typed client: the four
// range reads and the two multiple-write function codes, addressed by
// unit id. Config.Transport builds implementations on top of the
// goburrow handlers; anything satisfying the interface plugs in.
type Transport interface {
	Connect() error
	Close() error
	// ReadCoils requests quantity coil states starting at address
	// (function code 0x01). The result is the packed status field.
	ReadCoils(unit byte, address, quantity uint16) ([]byte, error)
	// ReadDiscreteInputs is ReadCoils for discrete inputs (0x02).
	ReadDiscreteInputs(unit byte, address, quantity uint16) ([]byte, error)
	// ReadHoldingRegisters requests quantity registers starting at
	// address (0x03). The result holds two bytes per register.
	ReadHoldingRegisters(unit byte, address, quantity uint16) ([]byte, error)
	// ReadInputRegisters is ReadHoldingRegisters for input registers
	// (0x04).
	ReadInputRegisters(unit byte, address, quantity uint16) ([]byte, error)
	// WriteMultipleCoils writes a packed status field of quantity bits
	// starting at address (0x0F).
	WriteMultipleCoils(unit byte, address, quantity uint16, value []byte) error
	// WriteMultipleRegisters writes two bytes per register starting at
	// address (0x10).
	WriteMultipleRegisters(unit byte, address, quantity uint16, value []byte) error
}

// Client reads and writes typed variables on a remote modbus server.
// Every read covers the complete range of the addressed sub-layout in
// a single request; every write issues one request per payload chunk.
type Client struct {
	transport Transport
	layout    *ServerContextLayout
}

// NewClient combines a transport and the layout of the remote server's
// datastore.
func NewClient(transport Transport, layout *ServerContextLayout) *Client {
	return &Client{transport: transport, layout: layout}
}

// Layout returns the server layout the client operates on.
func (c *Client) Layout() *ServerContextLayout {
	return c.layout
}

// wrapResponse converts goburrow's exception response error into the
// package's response error; transport errors pass unchanged.
func wrapResponse(err error) error {
	var mbErr *gomodbus.ModbusError
	if errors.As(err, &mbErr) {
		return &ResponseError{
			FunctionCode:  mbErr.FunctionCode,
			ExceptionCode: mbErr.ExceptionCode,
		}
	}
	return err
}

// ReadHoldingRegisters reads variables from the holding registers of
// unit (all variables if none are named).
func (c *Client) ReadHoldingRegisters(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.HoldingRegisterLayout(unit)
	if err != nil {
		return nil, err
	}
	res, err := c.transport.ReadHoldingRegisters(byte(unit), uint16(layout.Address()), uint16(layout.Size()))
	if err != nil {
		return nil, wrapResponse(err)
	}
	return layout.DecodeBytes(res, variables...)
}

// ReadHoldingRegister reads a single variable from the holding
// registers of unit. The request still covers the layout's complete
// range.
func (c *Client) ReadHoldingRegister(unit int, name string) (any, error) {
	values, err := c.ReadHoldingRegisters(unit, name)
	if err != nil {
		return nil, err
	}
	return values[name], nil
}

// WriteHoldingRegisters writes values to the holding registers of
// unit, one request per payload chunk.
func (c *Client) WriteHoldingRegisters(unit int, values map[string]any) error {
	layout, err := c.layout.HoldingRegisterLayout(unit)
	if err != nil {
		return err
	}
	payloads, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := c.transport.WriteMultipleRegisters(byte(unit), uint16(p.Address), uint16(p.Quantity()), p.Bytes); err != nil {
			return wrapResponse(err)
		}
	}
	return nil
}

// WriteHoldingRegister sets a single holding register variable.
func (c *Client) WriteHoldingRegister(unit int, name string, value any) error {
	return c.WriteHoldingRegisters(unit, map[string]any{name: value})
}

// ReadInputRegisters reads variables from the input registers of unit.
func (c *Client) ReadInputRegisters(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.InputRegisterLayout(unit)
	if err != nil {
		return nil, err
	}
	res, err := c.transport.ReadInputRegisters(byte(unit), uint16(layout.Address()), uint16(layout.Size()))
	if err != nil {
		return nil, wrapResponse(err)
	}
	return layout.DecodeBytes(res, variables...)
}

// ReadInputRegister reads a single variable from the input registers
// of unit.
func (c *Client) ReadInputRegister(unit int, name string) (any, error) {
	values, err := c.ReadInputRegisters(unit, name)
	if err != nil {
		return nil, err
	}
	return values[name], nil
}

// ReadCoils reads variables from the coils of unit.
func (c *Client) ReadCoils(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.CoilLayout(unit)
	if err != nil {
		return nil, err
	}
	res, err := c.transport.ReadCoils(byte(unit), uint16(layout.Address()), uint16(layout.Size()))
	if err != nil {
		return nil, wrapResponse(err)
	}
	return layout.DecodeCoils(bytesToBools(layout.Size(), res), variables...)
}

// ReadCoil reads a single variable from the coils of unit.
func (c *Client) ReadCoil(unit int, name string) (any, error) {
	values, err := c.ReadCoils(unit, name)
	if err != nil {
		return nil, err
	}
	return values[name], nil
}

// WriteCoils writes values to the coils of unit, one request per
// payload chunk.
func (c *Client) WriteCoils(unit int, values map[string]any) error {
	layout, err := c.layout.CoilLayout(unit)
	if err != nil {
		return err
	}
	chunks, err := layout.BuildPayload(values)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := c.transport.WriteMultipleCoils(byte(unit), uint16(chunk.Address), uint16(len(chunk.Bits)), boolsToBytes(chunk.Bits)); err != nil {
			return wrapResponse(err)
		}
	}
	return nil
}

// WriteCoil sets a single coil variable.
func (c *Client) WriteCoil(unit int, name string, value any) error {
	return c.WriteCoils(unit, map[string]any{name: value})
}

// ReadDiscreteInputs reads variables from the discrete inputs of unit.
func (c *Client) ReadDiscreteInputs(unit int, variables ...string) (map[string]any, error) {
	layout, err := c.layout.DiscreteInputLayout(unit)
	if err != nil {
		return nil, err
	}
	res, err := c.transport.ReadDiscreteInputs(byte(unit), uint16(layout.Address()), uint16(layout.Size()))
	if err != nil {
		return nil, wrapResponse(err)
	}
	return layout.DecodeCoils(bytesToBools(layout.Size(), res), variables...)
}

// ReadDiscreteInput reads a single variable from the discrete inputs
// of unit.
func (c *Client) ReadDiscreteInput(unit int, name string) (any, error) {
	values, err := c.ReadDiscreteInputs(unit, name)
	if err != nil {
		return nil, err
	}
	return values[name], nil
}
