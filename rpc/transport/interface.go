package transport

import (
	"errors"
	"net"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/packet"
)

var (
	// ErrPoolExhausted is returned by an AdmitFunc if every worker slot is in use
	ErrPoolExhausted = errors.New("transport: thread pool exhausted")
	// ErrShuttingDown is returned by an AdmitFunc once the server is shutting down
	ErrShuttingDown = errors.New("transport: server is shutting down")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// AdmitFunc hands an accepted connection to the server.
// On success the server owns the connection. On error the transport closes it.
type AdmitFunc func(conn net.Conn) error

// IRPCServerTransport is the interface for the connection acceptor
type IRPCServerTransport interface {
	// RegisterHandler registers the function every accepted connection is passed to
	RegisterHandler(admit AdmitFunc)
	// Listen creates the listener described by config and serves it until Close is called
	Listen(config common.ServerConfig) error
	// Serve accepts connections from l until Close is called, it then returns nil
	Serve(l net.Listener) error
	// Close stops accepting connections. Admitted connections are not touched.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport.
// A client transport owns a single connection, which is one session on the server.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request packet and waits for the response packet.
	// The returned body is only valid until the next call of Send.
	Send(req packet.Header, body []byte) (resp packet.Header, respBody []byte, err error)
	// Close closes the transport connection
	Close() error
}
