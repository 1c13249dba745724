package models

import (
	"net"
	"strconv"
	"time"
)

// ConnectRequest holds the validated details of one connection attempt.
// A zero Timeout leaves the connect step unbounded.
type ConnectRequest struct {
	Nickname string
	Host     string
	Port     int
	Timeout  time.Duration
}

// Address joins host and port for logging and dialing
func (r ConnectRequest) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
