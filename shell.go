package modbus

import (
	"errors"
	"net"
	"sync"

	"github.com/GoAethereal/cancel"
)

// BackgroundServer runs a modbus server over a local datastore in the
// background, together with any daemons operating on the same store.
// Daemons are part of the shell because they must share the server's
// datastore; running them elsewhere would split the state.
type BackgroundServer struct {
	endpoint string
	ds       *ServerDatastore
	layout   *ServerContextLayout
	daemons  []*Daemon
	lis      net.Listener
	stop     func()
	done     chan struct{}
	err      error
}

// NewBackgroundServer prepares a server on the given tcp endpoint.
// Pass an endpoint with port 0 to bind an ephemeral port; Addr reveals
// the bound address after Start.
func NewBackgroundServer(endpoint string, ds *ServerDatastore, layout *ServerContextLayout, daemons ...*Daemon) *BackgroundServer {
	return &BackgroundServer{endpoint: endpoint, ds: ds, layout: layout, daemons: daemons}
}

// Start binds the listener, serves the daemons on the shared context
// and launches the server in the background.
func (s *BackgroundServer) Start() error {
	if s.lis != nil {
		return errors.New("modbus: server already started")
	}
	l, err := net.Listen("tcp", s.endpoint)
	if err != nil {
		return err
	}
	s.lis = l
	sig := cancel.New()
	var once sync.Once
	s.stop = func() { once.Do(sig.Cancel) }
	s.done = make(chan struct{})
	ctx := NewLocalContext(s.ds, s.layout)
	for _, d := range s.daemons {
		d.Serve(ctx)
	}
	go func() {
		defer close(s.done)
		srv := &Server{}
		s.err = srv.Serve(sig, l, NewDatastoreMux(s.ds))
	}()
	return nil
}

// Addr returns the address the server is bound to.
func (s *BackgroundServer) Addr() net.Addr {
	return s.lis.Addr()
}

// Context returns a local context on the server's datastore.
func (s *BackgroundServer) Context() *LocalContext {
	return NewLocalContext(s.ds, s.layout)
}

// Stop terminates the server and its daemons. In-flight requests are
// cut off with the connections. The first daemon error, if any, is
// returned.
func (s *BackgroundServer) Stop() error {
	if s.lis == nil {
		return nil
	}
	s.stop()
	<-s.done
	err := s.err
	for _, d := range s.daemons {
		if derr := d.Stop(); err == nil {
			err = derr
		}
	}
	return err
}
