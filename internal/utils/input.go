package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"kgnchat/internal/models"
)

// DefaultTimeout bounds the connect step of requests built by Validate
const DefaultTimeout = 5 * time.Second

var (
	ErrInvalidPort   = errors.New("invalid port")
	ErrFieldRequired = errors.New("this field is required")
)

// Field names one input of the connect form
type Field int

const (
	FieldNone Field = iota
	FieldPort
	FieldAddress
	FieldNickname
)

func (f Field) String() string {
	switch f {
	case FieldPort:
		return "port"
	case FieldAddress:
		return "address"
	case FieldNickname:
		return "nickname"
	}
	return "none"
}

// ConnectionDetails holds the raw text typed into the connect form
type ConnectionDetails struct {
	Nickname string
	Address  string
	Port     string
}

// ValidationResult is the outcome of Validate. Errors has one entry per
// failing field and FirstInvalid is the field that should receive focus.
type ValidationResult struct {
	Request      models.ConnectRequest
	Errors       map[Field]error
	FirstInvalid Field
}

// Valid reports whether Request may be used
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ParsePort parses a base-10 port. Anything that is not a usable TCP port
// yields 0.
func ParsePort(text string) int {
	port, err := strconv.Atoi(text)
	if err != nil || port <= 0 || port > 65535 {
		return 0
	}
	return port
}

// Validate checks the form input in the order port, address, nickname.
func Validate(nickname, address, portText string) ValidationResult {
	res := ValidationResult{Errors: map[Field]error{}}
	fail := func(f Field, err error) {
		res.Errors[f] = err
		if res.FirstInvalid == FieldNone {
			res.FirstInvalid = f
		}
	}

	port := ParsePort(portText)
	if port == 0 {
		fail(FieldPort, ErrInvalidPort)
	}
	if address == "" {
		fail(FieldAddress, ErrFieldRequired)
	}
	if nickname == "" {
		fail(FieldNickname, ErrFieldRequired)
	}

	if res.Valid() {
		res.Request = models.ConnectRequest{
			Nickname: nickname,
			Host:     address,
			Port:     port,
			Timeout:  DefaultTimeout,
		}
	}
	return res
}

// ValidateDetails trims surrounding whitespace from the port text, which
// the form never intends as part of the number, and validates.
func ValidateDetails(d ConnectionDetails) ValidationResult {
	return Validate(d.Nickname, d.Address, strings.TrimSpace(d.Port))
}
