package modbus

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType indicates that a variable was declared with a type
	// tag outside the supported set. Note that 8-bit numeric tags are
	// deliberately not supported, as registers are 16-bit cells.
	ErrUnknownType = errors.New("modbus: unknown type")
	// ErrOutOfBounds indicates an integer value outside the range of its
	// declared type. Float tags are never range-checked.
	ErrOutOfBounds = errors.New("modbus: value out of bounds")
	// ErrNegativeAddress indicates a variable declared with an explicit
	// negative address. Memory addresses must never be negative.
	ErrNegativeAddress = errors.New("modbus: negative address")
	// ErrInvalidAddressLayout indicates that a variable's explicit
	// address overlaps the store of the previous variable.
	ErrInvalidAddressLayout = errors.New("modbus: invalid address layout")
	// ErrNoVariables indicates a layout constructed without variables.
	ErrNoVariables = errors.New("modbus: layout contains no variables")
	// ErrDuplicateVariable indicates a duplicate name within one layout.
	ErrDuplicateVariable = errors.New("modbus: duplicate variable")
	// ErrVariableNotFound indicates that one or more requested names are
	// not declared in the layout. The error message lists every unknown
	// name, not just the first.
	ErrVariableNotFound = errors.New("modbus: variable not found")
	// ErrInvalidSize indicates a coil variable with size < 1.
	ErrInvalidSize = errors.New("modbus: invalid size")
	// ErrMissingSubLayout indicates that the slave layout for the unit
	// exists but does not define the requested sub-space.
	ErrMissingSubLayout = errors.New("modbus: no memory layout defined for sub-space")
	// ErrNoSuchSlaveLayout indicates that no slave layout is defined for
	// the unit.
	ErrNoSuchSlaveLayout = errors.New("modbus: no memory layout defined for slave")
	// ErrNoSuchSlave indicates that the unit is absent from the
	// datastore.
	ErrNoSuchSlave = errors.New("modbus: no such slave")
	// ErrNegativePeriod indicates a daemon created with a negative
	// period.
	ErrNegativePeriod = errors.New("modbus: negative period")
	// ErrNotConnected indicates a client operation before Start or after
	// Stop.
	ErrNotConnected = errors.New("modbus: not connected")
	// ErrTimeout indicates that a client failed to start or stop within
	// the given timeout.
	ErrTimeout = errors.New("modbus: timeout")
	// ErrEncoding is the catch-all encoder/decoder failure.
	ErrEncoding = errors.New("modbus: encoding failed")
	// ErrOutOfRange indicates a datastore access outside the backing
	// address space.
	ErrOutOfRange = errors.New("modbus: address out of range")
	// ErrInvalidParameter signals a malformed input.
	ErrInvalidParameter = errors.New("modbus: given parameter violates restriction")
	// ErrDataSizeExceeded indicates that the given data length exceeds
	// the limits of a modbus package payload.
	ErrDataSizeExceeded = errors.New("modbus: data size exceeds limit")
)

// ResponseError reports a modbus response whose function code did not
// match the one expected for the operation, i.e. an exception response.
type ResponseError struct {
	// FunctionCode is the code carried by the response, with the error
	// flag (0x80) set.
	FunctionCode byte
	// ExceptionCode is the modbus exception code of the response.
	ExceptionCode byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("modbus: exception response (function code %#x, exception code %#x)", e.FunctionCode, e.ExceptionCode)
}
