package base

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConnector struct{ upgraded chan net.Conn }

func (c *testConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", config.Endpoint)
}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) UpgradeConnection(conn net.Conn) error {
	c.upgraded <- conn
	return nil
}

// serve starts the acceptor on a loopback listener and stops it at the end of the test
func serve(t *testing.T, admit transport.AdmitFunc) (transport.IRPCServerTransport, *testConnector, string) {
	t.Helper()
	connector := &testConnector{upgraded: make(chan net.Conn, 8)}
	acceptor := NewBaseServerTransport(connector)
	acceptor.RegisterHandler(admit)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- acceptor.Serve(l) }()

	t.Cleanup(func() {
		require.NoError(t, acceptor.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return acceptor, connector, l.Addr().String()
}

func TestAcceptedConnectionsAreAdmitted(t *testing.T) {
	admitted := make(chan net.Conn, 1)
	_, connector, addr := serve(t, func(conn net.Conn) error {
		admitted <- conn
		return nil
	})

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	var conn net.Conn
	select {
	case conn = <-admitted:
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not admitted")
	}
	defer conn.Close()
	assert.Equal(t, conn, <-connector.upgraded)

	// The admitted connection is still open and usable
	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestRefusedConnectionsAreClosed(t *testing.T) {
	for _, refusal := range []error{transport.ErrPoolExhausted, transport.ErrShuttingDown} {
		t.Run(refusal.Error(), func(t *testing.T) {
			_, _, addr := serve(t, func(net.Conn) error { return refusal })

			client, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			defer client.Close()

			require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
			_, err = client.Read(make([]byte, 1))
			assert.Error(t, err)
			if ne, ok := err.(net.Error); ok {
				assert.False(t, ne.Timeout(), "connection was not closed")
			}
		})
	}
}

func TestServeWithoutHandler(t *testing.T) {
	acceptor := NewBaseServerTransport(&testConnector{})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	assert.Error(t, acceptor.Serve(l))
}

func TestCloseBeforeServe(t *testing.T) {
	acceptor := NewBaseServerTransport(&testConnector{})
	acceptor.RegisterHandler(func(net.Conn) error { return nil })
	require.NoError(t, acceptor.Close())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, acceptor.Serve(l))

	// The listener was closed
	_, err = l.Accept()
	assert.Error(t, err)
}

func TestListen(t *testing.T) {
	acceptor := NewBaseServerTransport(&testConnector{})
	acceptor.RegisterHandler(func(net.Conn) error { return nil })

	err := acceptor.Listen(common.ServerConfig{Endpoint: "256.0.0.1:1"})
	assert.Error(t, err)
}

func TestAcceptBackoff(t *testing.T) {
	assert.Equal(t, minAcceptDelay, acceptBackoff(0))
	assert.Equal(t, 2*minAcceptDelay, acceptBackoff(minAcceptDelay))
	assert.Equal(t, maxAcceptDelay, acceptBackoff(maxAcceptDelay))
}
