package server

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"kgnchat/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectTimeout = time.Second * 2

func startServer(t *testing.T) *Server {
	t.Helper()
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server, nick string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), expectTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = io.WriteString(conn, protocol.Request(nick, "test client"))
	require.NoError(t, err)
	return &testClient{conn: conn, r: bufio.NewReader(conn)}
}

func expectLine(t *testing.T, c *testClient, expect string) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(expectTimeout))
	line, err := protocol.ReadLine(c.r)
	require.NoError(t, err)
	assert.Equal(t, expect, line)
}

func TestServerAcceptsFreeNick(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv, "foo")
	expectLine(t, c, Accepted)
	assert.True(t, srv.Has("foo"))
}

func TestServerRejectsNickInUse(t *testing.T) {
	srv := startServer(t)
	c1 := dial(t, srv, "foo")
	expectLine(t, c1, Accepted)

	c2 := dial(t, srv, "foo")
	expectLine(t, c2, protocol.NickInUse)

	c2.conn.SetReadDeadline(time.Now().Add(expectTimeout))
	_, err := c2.r.ReadByte()
	assert.Equal(t, io.EOF, err, "server should close rejected connection")
}

func TestServerReleasesNickOnDisconnect(t *testing.T) {
	srv := startServer(t)
	c1 := dial(t, srv, "foo")
	expectLine(t, c1, Accepted)
	c1.conn.Close()

	assert.Eventually(t, func() bool { return !srv.Has("foo") }, expectTimeout, 10*time.Millisecond)

	c2 := dial(t, srv, "foo")
	expectLine(t, c2, Accepted)
}

func TestServerBroadcast(t *testing.T) {
	srv := startServer(t)
	c1 := dial(t, srv, "foo")
	expectLine(t, c1, Accepted)
	c2 := dial(t, srv, "baz")
	expectLine(t, c2, Accepted)

	_, err := io.WriteString(c2.conn, "hello\n")
	require.NoError(t, err)
	expectLine(t, c1, "baz: hello")
	expectLine(t, c2, "baz: hello")
}

func TestServerDropsMalformedHandshake(t *testing.T) {
	srv := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	io.WriteString(conn, "HELLO\n")

	conn.SetReadDeadline(time.Now().Add(expectTimeout))
	_, err = bufio.NewReader(conn).ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestServerCloseDisconnectsPendingClients(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	// Give the server a moment to accept before closing.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(expectTimeout):
		t.Fatal("Close blocked on a client that never sent a handshake")
	}
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(expectTimeout):
		t.Fatal("Serve did not return after Close")
	}
}
