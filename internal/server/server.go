package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"kgnchat/internal/protocol"
)

// Accepted is the reply sent to a client whose nickname is free
const Accepted = "OK"

// Server accepts handshakes and relays lines between connected clients
type Server struct {
	clients sync.Map // nickname -> net.Conn
	ln      net.Listener
	wg      sync.WaitGroup
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool
}

// Listen opens a TCP listener on addr
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error starting server: %w", err)
	}
	return New(ln), nil
}

// New wraps an existing listener
func New(ln net.Listener) *Server {
	return &Server{ln: ln, conns: make(map[net.Conn]struct{})}
}

// Addr is the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until Close is called
func (s *Server) Serve() error {
	logger.Infof("Listening for connections on %s", s.ln.Addr())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warningf("Failed to accept connection: %v", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleClient(conn)
		}()
	}
}

// Close stops accepting, disconnects every client and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Has reports whether nickname is connected
func (s *Server) Has(nickname string) bool {
	_, ok := s.clients.Load(nickname)
	return ok
}

// handleClient performs the handshake then relays the client's lines
func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	line, err := protocol.ReadLine(r)
	if err != nil {
		logger.Debugf("handshake read from %s: %v", conn.RemoteAddr(), err)
		return
	}
	nick, clientID, err := protocol.ParseRequest(line)
	if err != nil {
		logger.Warningf("handshake from %s: %v", conn.RemoteAddr(), err)
		return
	}

	if _, loaded := s.clients.LoadOrStore(nick, conn); loaded {
		logger.Infof("%s rejected: nick %q in use", conn.RemoteAddr(), nick)
		io.WriteString(conn, protocol.NickInUse+"\n")
		return
	}
	defer s.clients.Delete(nick)

	logger.Infof("%s connected as %q using %s", conn.RemoteAddr(), nick, clientID)
	if _, err := io.WriteString(conn, Accepted+"\n"); err != nil {
		return
	}

	for {
		line, err := protocol.ReadLine(r)
		if err != nil {
			logger.Debugf("%q disconnected: %v", nick, err)
			return
		}
		s.broadcast(nick + ": " + strings.TrimSpace(line))
	}
}

// broadcast sends a line to all connected clients
func (s *Server) broadcast(line string) {
	s.clients.Range(func(key, value interface{}) bool {
		if conn, ok := value.(net.Conn); ok {
			io.WriteString(conn, line+"\n")
		}
		return true
	})
}
