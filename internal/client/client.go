package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"

	"kgnchat/internal/models"
	"kgnchat/internal/protocol"

	"github.com/google/uuid"
)

// Resolver looks up the addresses of a host. *net.Resolver implements it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DialFunc opens a stream connection. It must honour ctx.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config overrides the defaults of an Establisher. The zero value is usable.
type Config struct {
	ClientID string
	Resolver Resolver
	// Dial replaces a net.Dialer using the request timeout.
	Dial DialFunc
}

// Establisher runs connection handshakes in the background
type Establisher struct {
	clientID string
	resolver Resolver
	dial     DialFunc
}

// New creates an Establisher
func New(cfg Config) *Establisher {
	e := &Establisher{
		clientID: cfg.ClientID,
		resolver: cfg.Resolver,
		dial:     cfg.Dial,
	}
	if e.clientID == "" {
		e.clientID = protocol.ClientID
	}
	if e.resolver == nil {
		e.resolver = net.DefaultResolver
	}
	return e
}

// Handle is one in-flight or finished connection attempt
type Handle struct {
	ID      uuid.UUID
	Request models.ConnectRequest

	cancel  context.CancelFunc
	decided atomic.Bool
	conn    atomic.Pointer[net.Conn]
	done    chan Outcome
}

// Done delivers exactly one Outcome and is then closed
func (h *Handle) Done() <-chan Outcome {
	return h.done
}

// Wait blocks until the outcome arrives or ctx ends. Ending ctx does not
// cancel the attempt.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-h.done:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel aborts the attempt and delivers Cancelled. It is a no-op once an
// outcome has been delivered and is safe to call from any goroutine.
func (h *Handle) Cancel() {
	if !h.decide(Outcome{Kind: Cancelled}) {
		return
	}
	logger.Infof("%s: connection to %s cancelled", h.ID, h.Request.Address())
	h.cancel()
	if c := h.conn.Load(); c != nil {
		(*c).Close()
	}
}

// decide delivers o unless an outcome has already been decided
func (h *Handle) decide(o Outcome) bool {
	if !h.decided.CompareAndSwap(false, true) {
		return false
	}
	h.done <- o
	close(h.done)
	return true
}

// setConn publishes the socket so Cancel can close it. It reports false
// when the attempt was cancelled, in which case the socket is closed.
func (h *Handle) setConn(c net.Conn) bool {
	h.conn.Store(&c)
	if h.decided.Load() {
		c.Close()
		return false
	}
	return true
}

// Start begins a handshake for req and returns immediately. Ending ctx
// cancels the attempt like Handle.Cancel.
func (e *Establisher) Start(ctx context.Context, req models.ConnectRequest) *Handle {
	attempt, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		ID:      uuid.New(),
		Request: req,
		cancel:  cancel,
		done:    make(chan Outcome, 1),
	}
	stop := context.AfterFunc(ctx, h.Cancel)

	go func() {
		defer stop()
		defer cancel()

		o := e.handshake(attempt, h)
		if h.decide(o) {
			logger.Infof("%s: %s: %s", h.ID, req.Address(), o)
			return
		}
		if o.Conn != nil {
			o.Conn.Close()
		}
		logger.Debugf("%s: discarded %s after cancel", h.ID, o.Kind)
	}()

	return h
}

func (e *Establisher) handshake(ctx context.Context, h *Handle) Outcome {
	req := h.Request
	addr := req.Address()
	fail := func(cause Cause, err error) Outcome {
		return Outcome{Kind: NetworkFailure, Err: &NetworkError{Cause: cause, Addr: addr, Err: err}}
	}

	logger.Debugf("%s: resolving %s", h.ID, req.Host)
	ips, err := e.resolver.LookupIPAddr(ctx, req.Host)
	if err == nil && len(ips) == 0 {
		err = fmt.Errorf("no addresses for %s", req.Host)
	}
	if err != nil {
		return fail(HostUnresolvable, err)
	}

	target := net.JoinHostPort(ips[0].String(), strconv.Itoa(req.Port))
	logger.Debugf("%s: connecting to %s", h.ID, target)
	conn, err := e.dialContext(ctx, req, target)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fail(ConnectTimeout, err)
		}
		return fail(ConnectRefused, err)
	}
	if !h.setConn(conn) {
		return Outcome{Kind: Cancelled}
	}

	logger.Debugf("%s: sending connection request", h.ID)
	if _, err := io.WriteString(conn, protocol.Request(req.Nickname, e.clientID)); err != nil {
		conn.Close()
		return fail(WriteFailed, err)
	}

	r := bufio.NewReader(conn)
	line, err := protocol.ReadLine(r)
	if err != nil {
		conn.Close()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fail(UnexpectedEOF, err)
		}
		return fail(ReadFailed, err)
	}
	logger.Debugf("%s: received response: %s", h.ID, line)

	if protocol.Classify(line) == protocol.Rejected {
		conn.Close()
		return Outcome{Kind: NickInUse}
	}
	return Outcome{Kind: Success, Conn: &bufferedConn{Conn: conn, r: r}}
}

func (e *Establisher) dialContext(ctx context.Context, req models.ConnectRequest, target string) (net.Conn, error) {
	if e.dial != nil {
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		return e.dial(ctx, "tcp", target)
	}
	d := net.Dialer{Timeout: req.Timeout}
	return d.DialContext(ctx, "tcp", target)
}

// bufferedConn keeps bytes the server sent after the handshake reply
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
