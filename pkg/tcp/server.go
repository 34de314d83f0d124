package tcp

import (
	"errors"
	"net"
	"sync"

	"nrtstress/pkg/exception"
)

var (
	// ErrNilServer is returned when a nil server receiver is used.
	ErrNilServer = errors.New("tcp: nil server")
	// ErrAlreadyListening is returned when Listen is called twice.
	ErrAlreadyListening = errors.New("tcp: already listening")
	// ErrNotListening is returned when Accept is called before Listen.
	ErrNotListening = errors.New("tcp: not listening")
)

// Server listens for TCP connections.
type Server struct {
	addr string

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a server for the provided address. Port 0 picks a free port.
func NewServer(addr string) (*Server, error) {
	if addr == "" {
		return nil, exception.ErrEmptyAddressTCP
	}
	return &Server{addr: addr}, nil
}

// Addr returns the bound address once listening, the configured one otherwise.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Listen starts listening on the configured address.
func (s *Server) Listen() error {
	if s == nil {
		return ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrAlreadyListening
	}
	ln, err := net.Listen(tcpNetwork, s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Accept waits for the next incoming connection.
// It returns net.ErrClosed once Close has been called.
func (s *Server) Accept() (net.Conn, error) {
	if s == nil {
		return nil, ErrNilServer
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil, ErrNotListening
	}
	return ln.Accept()
}

// Close stops the listener.
func (s *Server) Close() error {
	if s == nil {
		return ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}
