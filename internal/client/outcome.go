package client

import (
	"fmt"
	"net"
)

// Cause identifies which step of the handshake failed at the transport level
type Cause int

const (
	HostUnresolvable Cause = iota + 1
	ConnectTimeout
	ConnectRefused
	WriteFailed
	ReadFailed
	UnexpectedEOF
)

func (c Cause) String() string {
	switch c {
	case HostUnresolvable:
		return "host unresolvable"
	case ConnectTimeout:
		return "connect timeout"
	case ConnectRefused:
		return "connect failed"
	case WriteFailed:
		return "write failed"
	case ReadFailed:
		return "read failed"
	case UnexpectedEOF:
		return "unexpected end of stream"
	}
	return fmt.Sprintf("cause(%d)", int(c))
}

// NetworkError is a transport failure of one attempt
type NetworkError struct {
	Cause Cause
	Addr  string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Addr, e.Cause, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Kind tags an Outcome
type Kind int

const (
	Success Kind = iota + 1
	NetworkFailure
	NickInUse
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NetworkFailure:
		return "network error"
	case NickInUse:
		return "nick in use"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the single terminal result of an attempt. Conn is set only for
// Success and Err only for NetworkFailure.
type Outcome struct {
	Kind Kind
	Conn net.Conn
	Err  *NetworkError
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s (%v)", o.Kind, o.Err)
	}
	return o.Kind.String()
}
