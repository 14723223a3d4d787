package modbus

import "fmt"

var (
	// ExIllegalFunction - Exception code 0x01
	//
	// The function code received in the query is not an allowable action
	// for the server.
	ExIllegalFunction = newException(0x01)
	// ExIllegalDataAddress - Exception code 0x02
	//
	// The data address received in the query is not an allowable address
	// for the server. More specifically, the combination of reference
	// number and transfer length is invalid.
	ExIllegalDataAddress = newException(0x02)
	// ExIllegalDataValue - Exception code 0x03
	//
	// A value contained in the query data field is not an allowable
	// value for the server, such as an implied length which is
	// incorrect.
	ExIllegalDataValue = newException(0x03)
	// ExSlaveDeviceFailure - Exception code 0x04
	//
	// An unrecoverable error occurred while the server was attempting to
	// perform the requested action.
	ExSlaveDeviceFailure = newException(0x04)
	// ExGatewayTargetDeviceFailedToRespond - Exception code 0x0B
	//
	// No response was obtained from the target device. Returned by this
	// server when a request addresses a unit absent from the datastore.
	ExGatewayTargetDeviceFailedToRespond = newException(0x0B)
)

// Exception represents a modbus exception as defined by the specification.
// It´s a superset of the error interface.
type Exception interface {
	error
	Code() byte
}

func newException(code byte) Exception {
	return &exception{code: code}
}

var _ Exception = (*exception)(nil)

// exception is an internally used type which satisfies the modbus.Exception interface.
type exception struct {
	code byte
}

// Code returns the modbus defined exception code.
func (ex *exception) Code() byte {
	return ex.code
}

// Error returns a human readable string representing the underlying exception.
func (ex *exception) Error() string {
	prefix := "modbus: exception - "
	switch ex.Code() {
	case ExIllegalFunction.Code():
		return prefix + "ILLEGAL FUNCTION"
	case ExIllegalDataAddress.Code():
		return prefix + "ILLEGAL DATA ADDRESS"
	case ExIllegalDataValue.Code():
		return prefix + "ILLEGAL DATA VALUE"
	case ExSlaveDeviceFailure.Code():
		return prefix + "SLAVE DEVICE FAILURE"
	case ExGatewayTargetDeviceFailedToRespond.Code():
		return prefix + "GATEWAY TARGET DEVICE FAILED TO RESPOND"
	}
	return prefix + fmt.Sprintf("CODE %v UNDEFINED", ex.Code())
}
