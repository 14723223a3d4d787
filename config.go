package modbus

import (
	"log"
	"sync"
	"time"

	gomodbus "github.com/goburrow/modbus"
	"github.com/goburrow/serial"
)

// Config is used to construct the transport of a modbus client.
type Config struct {
	// Mode defines the communication framing
	// valid modes are:
	//	- tcp
	//	- rtu
	//	- ascii
	Mode string
	// Endpoint to connect to; host:port for tcp, the device path for
	// rtu and ascii.
	Endpoint string
	// Timeout for a single request/response cycle. Defaults to one
	// second.
	Timeout time.Duration
	// Serial parameters used in rtu and ascii mode. Zero fields keep
	// the transport's defaults.
	Serial serial.Config
	// UnitID is the slave addressed when an operation does not select
	// one.
	UnitID byte
	// Logger receives the transport's debug output, if set.
	Logger *log.Logger
}

// Verify validates the config, thereby checking for invalid parameter.
// If the config is valid no error (nil) is returned.
func (cfg *Config) Verify() error {
	switch cfg.Mode {
	case "tcp", "rtu", "ascii":
	default:
		return ErrInvalidParameter
	}
	if cfg.Endpoint == "" {
		return ErrInvalidParameter
	}
	return nil
}

// Transport builds a transport from the configuration. The transport
// is not yet connected.
func (cfg Config) Transport() (Transport, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second
	}
	switch cfg.Mode {
	case "tcp":
		h := gomodbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = timeout
		h.SlaveId = cfg.UnitID
		h.Logger = cfg.Logger
		return &handlerTransport{
			handler: h,
			client:  gomodbus.NewClient(h),
			setUnit: func(unit byte) { h.SlaveId = unit },
		}, nil
	case "rtu":
		h := gomodbus.NewRTUClientHandler(cfg.Endpoint)
		applySerial(&h.Config, cfg.Serial)
		h.Timeout = timeout
		h.SlaveId = cfg.UnitID
		h.Logger = cfg.Logger
		return &handlerTransport{
			handler: h,
			client:  gomodbus.NewClient(h),
			setUnit: func(unit byte) { h.SlaveId = unit },
		}, nil
	default:
		h := gomodbus.NewASCIIClientHandler(cfg.Endpoint)
		applySerial(&h.Config, cfg.Serial)
		h.Timeout = timeout
		h.SlaveId = cfg.UnitID
		h.Logger = cfg.Logger
		return &handlerTransport{
			handler: h,
			client:  gomodbus.NewClient(h),
			setUnit: func(unit byte) { h.SlaveId = unit },
		}, nil
	}
}

func applySerial(dst *serial.Config, src serial.Config) {
	if src.BaudRate != 0 {
		dst.BaudRate = src.BaudRate
	}
	if src.DataBits != 0 {
		dst.DataBits = src.DataBits
	}
	if src.StopBits != 0 {
		dst.StopBits = src.StopBits
	}
	if src.Parity != "" {
		dst.Parity = src.Parity
	}
	if src.RS485.Enabled {
		dst.RS485 = src.RS485
	}
}

type connector interface {
	Connect() error
	Close() error
}

// handlerTransport adapts a goburrow handler/client pair to the
// Transport interface. The per-call unit id is applied through
// setUnit; the mutex keeps concurrent callers from racing on it.
type handlerTransport struct {
	mu      sync.Mutex
	handler connector
	client  gomodbus.Client
	setUnit func(unit byte)
}

var _ Transport = (*handlerTransport)(nil)

func (t *handlerTransport) Connect() error {
	return t.handler.Connect()
}

func (t *handlerTransport) Close() error {
	return t.handler.Close()
}

func (t *handlerTransport) ReadCoils(unit byte, address, quantity uint16) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	return t.client.ReadCoils(address, quantity)
}

func (t *handlerTransport) ReadDiscreteInputs(unit byte, address, quantity uint16) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	return t.client.ReadDiscreteInputs(address, quantity)
}

func (t *handlerTransport) ReadHoldingRegisters(unit byte, address, quantity uint16) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	return t.client.ReadHoldingRegisters(address, quantity)
}

func (t *handlerTransport) ReadInputRegisters(unit byte, address, quantity uint16) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	return t.client.ReadInputRegisters(address, quantity)
}

func (t *handlerTransport) WriteMultipleCoils(unit byte, address, quantity uint16, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	_, err := t.client.WriteMultipleCoils(address, quantity, value)
	return err
}

func (t *handlerTransport) WriteMultipleRegisters(unit byte, address, quantity uint16, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setUnit(unit)
	_, err := t.client.WriteMultipleRegisters(address, quantity, value)
	return err
}
