package modbus

import (
	"context"
	"encoding/binary"
)

// Handler is firstly and foremost used by the modbus.Server.
// The Handle method describes how incoming messages are managed.
type Handler interface {
	Handle(ctx context.Context, unit, code byte, req []byte) (res []byte, ex Exception)
}

var _ Handler = (*Mux)(nil)

// Mux implements the modbus.Handler interface and is intended to be
// used as a server side request multiplexer. When called by the server
// it will redirect the inbound message to the given function. If the
// callback is not set the Mux will return the modbus.ExIllegalFunction
// exception to the server. In case of an unknown function code the
// Fallback function, if set, will be executed. All given functions
// must be safe for use by multiple go routines.
type Mux struct {
	Fallback               func(ctx context.Context, unit, code byte, req []byte) (res []byte, ex Exception)
	ReadCoils              func(ctx context.Context, unit byte, address, quantity uint16) (res []bool, ex Exception)
	ReadDiscreteInputs     func(ctx context.Context, unit byte, address, quantity uint16) (res []bool, ex Exception)
	ReadHoldingRegisters   func(ctx context.Context, unit byte, address, quantity uint16) (res []byte, ex Exception)
	ReadInputRegisters     func(ctx context.Context, unit byte, address, quantity uint16) (res []byte, ex Exception)
	WriteSingleCoil        func(ctx context.Context, unit byte, address uint16, status bool) (ex Exception)
	WriteSingleRegister    func(ctx context.Context, unit byte, address, value uint16) (ex Exception)
	WriteMultipleCoils     func(ctx context.Context, unit byte, address uint16, status []bool) (ex Exception)
	WriteMultipleRegisters func(ctx context.Context, unit byte, address uint16, values []byte) (ex Exception)
}

// Handle dispatches incoming requests depending on their function code
// to the correlating callbacks as defined inside the Mux.
func (h *Mux) Handle(ctx context.Context, unit, code byte, req []byte) (res []byte, ex Exception) {
	switch code {
	case 0x01:
		return h.readCoils(ctx, unit, req)
	case 0x02:
		return h.readDiscreteInputs(ctx, unit, req)
	case 0x03:
		return h.readHoldingRegisters(ctx, unit, req)
	case 0x04:
		return h.readInputRegisters(ctx, unit, req)
	case 0x05:
		return h.writeSingleCoil(ctx, unit, req)
	case 0x06:
		return h.writeSingleRegister(ctx, unit, req)
	case 0x0F:
		return h.writeMultipleCoils(ctx, unit, req)
	case 0x10:
		return h.writeMultipleRegisters(ctx, unit, req)
	}
	return h.fallback(ctx, unit, code, req)
}

func (h *Mux) fallback(ctx context.Context, unit, code byte, req []byte) (res []byte, ex Exception) {
	if h.Fallback == nil {
		return nil, ExIllegalFunction
	}
	return h.Fallback(ctx, unit, code, req)
}

func (h *Mux) readBits(ctx context.Context, unit byte, req []byte,
	read func(ctx context.Context, unit byte, address, quantity uint16) ([]bool, Exception)) (res []byte, ex Exception) {
	switch {
	case read == nil:
		return nil, ExIllegalFunction
	case len(req) != 4:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 2000:
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	status, ex := read(ctx, unit, address, quantity)
	switch {
	case ex != nil:
		return nil, ex
	case len(status) != int(quantity):
		return nil, ExSlaveDeviceFailure
	}
	res = make([]byte, 1+byteCount(int(quantity)))
	res[0] = byte(byteCount(int(quantity)))
	copy(res[1:], boolsToBytes(status))
	return res, nil
}

func (h *Mux) readCoils(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	return h.readBits(ctx, unit, req, h.ReadCoils)
}

func (h *Mux) readDiscreteInputs(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	return h.readBits(ctx, unit, req, h.ReadDiscreteInputs)
}

func (h *Mux) readRegisters(ctx context.Context, unit byte, req []byte,
	read func(ctx context.Context, unit byte, address, quantity uint16) ([]byte, Exception)) (res []byte, ex Exception) {
	switch {
	case read == nil:
		return nil, ExIllegalFunction
	case len(req) != 4:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 125:
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	values, ex := read(ctx, unit, address, quantity)
	switch {
	case ex != nil:
		return nil, ex
	case len(values) != 2*int(quantity):
		return nil, ExSlaveDeviceFailure
	}
	res = make([]byte, 1+len(values))
	res[0] = byte(len(values))
	copy(res[1:], values)
	return res, nil
}

func (h *Mux) readHoldingRegisters(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	return h.readRegisters(ctx, unit, req, h.ReadHoldingRegisters)
}

func (h *Mux) readInputRegisters(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	return h.readRegisters(ctx, unit, req, h.ReadInputRegisters)
}

func (h *Mux) writeSingleCoil(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	switch {
	case h.WriteSingleCoil == nil:
		return nil, ExIllegalFunction
	case len(req) != 4:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	status := false
	switch binary.BigEndian.Uint16(req[2:]) {
	case 0x0000:
	case 0xFF00:
		status = true
	default:
		return nil, ExIllegalDataValue
	}
	if ex = h.WriteSingleCoil(ctx, unit, address, status); ex != nil {
		return nil, ex
	}
	return req, nil
}

func (h *Mux) writeSingleRegister(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	switch {
	case h.WriteSingleRegister == nil:
		return nil, ExIllegalFunction
	case len(req) != 4:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	value := binary.BigEndian.Uint16(req[2:])
	if ex = h.WriteSingleRegister(ctx, unit, address, value); ex != nil {
		return nil, ex
	}
	return req, nil
}

func (h *Mux) writeMultipleCoils(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	switch {
	case h.WriteMultipleCoils == nil:
		return nil, ExIllegalFunction
	case len(req) < 6:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 1968 || len(req[5:]) != int(req[4]) || byteCount(int(quantity)) != int(req[4]):
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	if ex = h.WriteMultipleCoils(ctx, unit, address, bytesToBools(int(quantity), req[5:])); ex != nil {
		return nil, ex
	}
	return req[:4], nil
}

func (h *Mux) writeMultipleRegisters(ctx context.Context, unit byte, req []byte) (res []byte, ex Exception) {
	switch {
	case h.WriteMultipleRegisters == nil:
		return nil, ExIllegalFunction
	case len(req) < 6:
		return nil, ExIllegalDataAddress
	}
	address := binary.BigEndian.Uint16(req[0:])
	quantity := binary.BigEndian.Uint16(req[2:])
	switch {
	case quantity < 1 || quantity > 123 || 2*quantity != uint16(req[4]) || int(req[4]) != len(req[5:]):
		return nil, ExIllegalDataValue
	case int(address)+int(quantity) > 0xFFFF:
		return nil, ExIllegalDataAddress
	}
	if ex = h.WriteMultipleRegisters(ctx, unit, address, req[5:]); ex != nil {
		return nil, ex
	}
	return req[:4], nil
}

// NewDatastoreMux wires every supported function code to the given
// datastore. Requests for units absent from the datastore answer with
// the gateway exception; out-of-range accesses answer with
// ExIllegalDataAddress.
func NewDatastoreMux(ds *ServerDatastore) *Mux {
	unitOf := func(unit byte) (*Datastore, Exception) {
		store, err := ds.Unit(int(unit))
		if err != nil {
			return nil, ExGatewayTargetDeviceFailedToRespond
		}
		return store, nil
	}
	return &Mux{
		ReadCoils: func(ctx context.Context, unit byte, address, quantity uint16) ([]bool, Exception) {
			store, ex := unitOf(unit)
			if ex != nil {
				return nil, ex
			}
			bits, err := store.Coils(int(address), int(quantity))
			if err != nil {
				return nil, ExIllegalDataAddress
			}
			return bits, nil
		},
		ReadDiscreteInputs: func(ctx context.Context, unit byte, address, quantity uint16) ([]bool, Exception) {
			store, ex := unitOf(unit)
			if ex != nil {
				return nil, ex
			}
			bits, err := store.DiscreteInputs(int(address), int(quantity))
			if err != nil {
				return nil, ExIllegalDataAddress
			}
			return bits, nil
		},
		ReadHoldingRegisters: func(ctx context.Context, unit byte, address, quantity uint16) ([]byte, Exception) {
			store, ex := unitOf(unit)
			if ex != nil {
				return nil, ex
			}
			registers, err := store.HoldingRegisters(int(address), int(quantity))
			if err != nil {
				return nil, ExIllegalDataAddress
			}
			return registersToBytes(registers), nil
		},
		ReadInputRegisters: func(ctx context.Context, unit byte, address, quantity uint16) ([]byte, Exception) {
			store, ex := unitOf(unit)
			if ex != nil {
				return nil, ex
			}
			registers, err := store.InputRegisters(int(address), int(quantity))
			if err != nil {
				return nil, ExIllegalDataAddress
			}
			return registersToBytes(registers), nil
		},
		WriteSingleCoil: func(ctx context.Context, unit byte, address uint16, status bool) Exception {
			store, ex := unitOf(unit)
			if ex != nil {
				return ex
			}
			if err := store.SetCoils(int(address), []bool{status}); err != nil {
				return ExIllegalDataAddress
			}
			return nil
		},
		WriteSingleRegister: func(ctx context.Context, unit byte, address, value uint16) Exception {
			store, ex := unitOf(unit)
			if ex != nil {
				return ex
			}
			if err := store.SetHoldingRegisters(int(address), []uint16{value}); err != nil {
				return ExIllegalDataAddress
			}
			return nil
		},
		WriteMultipleCoils: func(ctx context.Context, unit byte, address uint16, status []bool) Exception {
			store, ex := unitOf(unit)
			if ex != nil {
				return ex
			}
			if err := store.SetCoils(int(address), status); err != nil {
				return ExIllegalDataAddress
			}
			return nil
		},
		WriteMultipleRegisters: func(ctx context.Context, unit byte, address uint16, values []byte) Exception {
			store, ex := unitOf(unit)
			if ex != nil {
				return ex
			}
			if err := store.SetHoldingRegisters(int(address), bytesToRegisters(values)); err != nil {
				return ExIllegalDataAddress
			}
			return nil
		},
	}
}
