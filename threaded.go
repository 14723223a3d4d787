package modbus

import (
	"fmt"
	"sync"
	"time"
)

// sentinel values exchanged on the response channel during the
// connect/disconnect handshake.
type sentinel int

const (
	connectedSentinel sentinel = iota
	disconnectSentinel
)

// command is one message from the caller to the worker: either an rpc
// on the transport or the disconnect request.
type command struct {
	name       string
	disconnect bool
	call       func(t Transport) (any, error)
}

// response is the worker's answer to a command. Panics inside the
// transport are captured into err and re-raised on the caller side as
// an error.
type response struct {
	value any
	err   error
}

type clientState int

const (
	stateCreated clientState = iota
	stateStarted
	stateStopped
)

// ThreadedClient owns a transport on a dedicated worker goroutine and
// serialises all access through a command/response channel pair. At
// most one rpc is in flight per client; callers block until their
// response arrives, giving strictly ordered request/response
// semantics.
//
// The embedded Client provides the typed read and write methods; they
// all pass through the worker.
type ThreadedClient struct {
	*Client
	factory   func() (Transport, error)
	commands  chan command
	responses chan response
	done      chan struct{}
	mu        sync.Mutex
	state     clientState
}

// NewThreadedClient prepares a client whose transport is created by
// factory on the worker goroutine once Start is called.
func NewThreadedClient(factory func() (Transport, error), layout *ServerContextLayout) *ThreadedClient {
	c := &ThreadedClient{
		factory:   factory,
		commands:  make(chan command),
		responses: make(chan response, 1),
		done:      make(chan struct{}),
	}
	c.Client = NewClient(&proxyTransport{client: c}, layout)
	return c
}

// NewThreadedClientConfig is NewThreadedClient with the transport
// built from the given configuration.
func NewThreadedClientConfig(cfg Config, layout *ServerContextLayout) *ThreadedClient {
	return NewThreadedClient(cfg.Transport, layout)
}

// Start launches the worker and waits for it to connect the
// transport. It fails with ErrTimeout if the worker does not announce
// the connection within timeout.
func (c *ThreadedClient) Start(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateCreated {
		return fmt.Errorf("%w: client already started", ErrNotConnected)
	}
	go c.worker()
	select {
	case r := <-c.responses:
		if r.err != nil {
			return r.err
		}
		if r.value != connectedSentinel {
			return fmt.Errorf("%w: unexpected handshake %v", ErrNotConnected, r.value)
		}
	case <-time.After(timeout):
		return fmt.Errorf("%w: waiting for connect", ErrTimeout)
	}
	c.state = stateStarted
	return nil
}

// Stop sends the disconnect command and joins the worker. It fails
// with ErrTimeout if the worker does not exit within timeout.
func (c *ThreadedClient) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateStarted {
		return ErrNotConnected
	}
	c.state = stateStopped
	c.commands <- command{disconnect: true}
	deadline := time.After(timeout)
	select {
	case r := <-c.responses:
		if r.value != disconnectSentinel {
			return fmt.Errorf("modbus: unexpected disconnect handshake %v", r.value)
		}
	case <-deadline:
		return fmt.Errorf("%w: waiting for disconnect", ErrTimeout)
	}
	select {
	case <-c.done:
		return nil
	case <-deadline:
		return fmt.Errorf("%w: joining worker", ErrTimeout)
	}
}

// worker is the only goroutine touching the transport. It connects,
// announces the connection and then serves commands until disconnect.
func (c *ThreadedClient) worker() {
	defer close(c.done)
	t, err := c.factory()
	if err != nil {
		c.responses <- response{err: err}
		return
	}
	if err := t.Connect(); err != nil {
		c.responses <- response{err: err}
		return
	}
	defer t.Close()
	c.responses <- response{value: connectedSentinel}
	for cmd := range c.commands {
		if cmd.disconnect {
			c.responses <- response{value: disconnectSentinel}
			return
		}
		value, err := invoke(cmd, t)
		c.responses <- response{value: value, err: err}
	}
}

func invoke(cmd command, t Transport) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modbus: unhandled exception in %s: %v", cmd.name, r)
		}
	}()
	return cmd.call(t)
}

// proxyTransport satisfies Transport by marshalling every call through
// the client's command/response channels.
type proxyTransport struct {
	client *ThreadedClient
}

var _ Transport = (*proxyTransport)(nil)

func (p *proxyTransport) Connect() error {
	return nil // the worker connects during Start
}

func (p *proxyTransport) Close() error {
	return nil
}

func (p *proxyTransport) execute(name string, call func(t Transport) (any, error)) (any, error) {
	c := p.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateStarted {
		return nil, ErrNotConnected
	}
	c.commands <- command{name: name, call: call}
	r := <-c.responses
	return r.value, r.err
}

func (p *proxyTransport) ReadCoils(unit byte, address, quantity uint16) ([]byte, error) {
	value, err := p.execute("read_coils", func(t Transport) (any, error) {
		return t.ReadCoils(unit, address, quantity)
	})
	if err != nil {
		return nil, err
	}
	buf, _ := value.([]byte)
	return buf, nil
}

func (p *proxyTransport) ReadDiscreteInputs(unit byte, address, quantity uint16) ([]byte, error) {
	value, err := p.execute("read_discrete_inputs", func(t Transport) (any, error) {
		return t.ReadDiscreteInputs(unit, address, quantity)
	})
	if err != nil {
		return nil, err
	}
	buf, _ := value.([]byte)
	return buf, nil
}

func (p *proxyTransport) ReadHoldingRegisters(unit byte, address, quantity uint16) ([]byte, error) {
	value, err := p.execute("read_holding_registers", func(t Transport) (any, error) {
		return t.ReadHoldingRegisters(unit, address, quantity)
	})
	if err != nil {
		return nil, err
	}
	buf, _ := value.([]byte)
	return buf, nil
}

func (p *proxyTransport) ReadInputRegisters(unit byte, address, quantity uint16) ([]byte, error) {
	value, err := p.execute("read_input_registers", func(t Transport) (any, error) {
		return t.ReadInputRegisters(unit, address, quantity)
	})
	if err != nil {
		return nil, err
	}
	buf, _ := value.([]byte)
	return buf, nil
}

func (p *proxyTransport) WriteMultipleCoils(unit byte, address, quantity uint16, value []byte) error {
	_, err := p.execute("write_multiple_coils", func(t Transport) (any, error) {
		return nil, t.WriteMultipleCoils(unit, address, quantity, value)
	})
	return err
}

func (p *proxyTransport) WriteMultipleRegisters(unit byte, address, quantity uint16, value []byte) error {
	_, err := p.execute("write_multiple_registers", func(t Transport) (any, error) {
		return nil, t.WriteMultipleRegisters(unit, address, quantity, value)
	})
	return err
}

// Write stores value into the variable, wherever the layout places it.
// Only the writable sub-spaces are eligible.
func (c *ThreadedClient) Write(name string, value any) error {
	unit, space, err := c.Layout().Find(name)
	if err != nil {
		return err
	}
	switch space {
	case SpaceHoldingRegisters:
		return c.WriteHoldingRegisters(unit, map[string]any{name: value})
	case SpaceCoils:
		return c.WriteCoils(unit, map[string]any{name: value})
	}
	return fmt.Errorf("%w: %s is read-only", ErrEncoding, space)
}
