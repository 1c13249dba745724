package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ClientID identifies this client in the handshake request.
const ClientID = "KGN Chat Go Client"

// NickInUse is the only reserved reply; every other line accepts the client.
const NickInUse = "ERROR:Nick in use"

// ErrMalformedRequest is returned by ParseRequest for lines that are not a
// CONNECT request.
var ErrMalformedRequest = errors.New("malformed handshake request")

// Reply is the classification of a server's handshake response.
type Reply int

const (
	Accepted Reply = iota
	Rejected
)

// Request formats the handshake line sent right after connecting.
func Request(nickname, clientID string) string {
	return "CONNECT:" + nickname + ":" + clientID + "\n"
}

// ParseRequest splits a CONNECT line into nickname and client identifier.
// The client identifier may itself contain colons.
func ParseRequest(line string) (nickname, clientID string, err error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 || parts[0] != "CONNECT" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedRequest, line)
	}
	return parts[1], parts[2], nil
}

// Classify maps a response line, without its terminator, to a Reply.
func Classify(line string) Reply {
	if line == NickInUse {
		return Rejected
	}
	return Accepted
}

// ReadLine reads exactly one newline-terminated line. A stream that ends
// before the newline yields io.ErrUnexpectedEOF.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
