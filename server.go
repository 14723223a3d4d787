package modbus

import (
	"context"
	"net"
	"sync"

	"github.com/GoAethereal/cancel"
)

// Server is the go implementation of a modbus slave.
// Once serving it will listen for incoming requests and forward them to the modbus.Handler h.
// Generally the intended use is as follows:
//
//	l, _ := net.Listen("tcp", "localhost:502")
//	h := modbus.NewDatastoreMux(ds)
//	s := modbus.Server{}
//
//	log.Fatal(s.Serve(sig, l, h))
type Server struct {
	mu sync.Mutex
	f  framer
}

// Serve accepts connections from the listener and dispatches their
// requests to the Handler h until the signal is canceled. h must be
// safe for use by multiple go routines.
func (s *Server) Serve(sig cancel.Context, l net.Listener, h Handler) error {
	s.mu.Lock()
	s.f = &tcpFramer{}
	s.mu.Unlock()
	ctx, stop := cancel.Promote(sig)
	defer stop()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sig.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-sig.Done():
				wg.Wait()
				return nil
			default:
				continue
			}
		}
		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			s.handle(ctx, conn, h)
		}(conn)
	}
}

// handle reads framed requests off the connection until it fails.
// Requests are dispatched concurrently; the write mutex keeps their
// responses from interleaving.
func (s *Server) handle(ctx context.Context, conn net.Conn, h Handler) {
	defer conn.Close()
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	wmu := newMutex()
	var wg sync.WaitGroup
	defer wg.Wait()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		adu, err := s.f.read(conn)
		if err != nil {
			return
		}
		wg.Add(1)
		go func(adu []byte) {
			defer wg.Done()
			uid, code, req, err := s.f.decode(adu)
			if err != nil {
				return
			}
			var res []byte
			var ex Exception
			if code < 0x80 {
				res, ex = h.Handle(ctx, uid, code, req)
			} else {
				ex = ExIllegalFunction
			}
			switch {
			case ex != nil:
				code |= 0x80
				res = []byte{ex.Code()}
			case len(res) > 252:
				code |= 0x80
				res = []byte{ExSlaveDeviceFailure.Code()}
			}
			res, err = s.f.reply(code, res, adu)
			if err != nil {
				return
			}
			if wmu.lock(ctx) != nil {
				return
			}
			defer wmu.unlock()
			conn.Write(res)
		}(adu)
	}
}
