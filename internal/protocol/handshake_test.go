package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	assert.Equal(t, "CONNECT:juke:KGN Chat Go Client\n", Request("juke", ClientID))
}

func TestParseRequest(t *testing.T) {
	nick, id, err := ParseRequest("CONNECT:juke:KGN Chat Android Client\n")
	require.NoError(t, err)
	assert.Equal(t, "juke", nick)
	assert.Equal(t, "KGN Chat Android Client", id)

	nick, id, err = ParseRequest("CONNECT:juke:a:b\r\n")
	require.NoError(t, err)
	assert.Equal(t, "juke", nick)
	assert.Equal(t, "a:b", id)

	for _, line := range []string{"", "HELLO", "CONNECT:juke", "CONNECT::client", "connect:juke:x"} {
		_, _, err := ParseRequest(line)
		assert.True(t, errors.Is(err, ErrMalformedRequest), "line %q", line)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Rejected, Classify("ERROR:Nick in use"))
	assert.Equal(t, Accepted, Classify("OK"))
	assert.Equal(t, Accepted, Classify(""))
	assert.Equal(t, Accepted, Classify("ERROR:Nick in use "))
	assert.Equal(t, Accepted, Classify("error:nick in use"))
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("OK\r\nnext\n"))
	line, err := ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "OK", line)

	line, err = ReadLine(r)
	require.NoError(t, err)
	assert.Equal(t, "next", line)

	_, err = ReadLine(bufio.NewReader(strings.NewReader("partial")))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = ReadLine(bufio.NewReader(strings.NewReader("")))
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}
