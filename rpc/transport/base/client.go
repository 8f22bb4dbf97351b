package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/packet"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements a synchronous client transport over one connection.
// The server binds contexts to the connection, so the connection is never
// re-established behind the caller's back.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	mu     sync.Mutex // serialises request/response pairs
	conn   net.Conn
	framer *packet.Framer
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return errors.New("no endpoint provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = common.DefaultBufferSize
	}

	conn, err := t.connector.Connect(config.Endpoint, t.timeout(config))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	t.config = config
	t.conn = conn
	t.framer = packet.NewFramer(conn, make([]byte, bufferSize))

	Logger.Debugf("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(req packet.Header, body []byte) (packet.Header, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return packet.Header{}, nil, errors.New("not connected")
	}

	if timeout := t.timeout(t.config); timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return packet.Header{}, nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	if err := packet.WriteFrame(t.conn, req, body); err != nil {
		return packet.Header{}, nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp, respBody, err := t.framer.ReadRequest()
	if err != nil {
		return packet.Header{}, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, respBody, nil
}

func (t *clientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) timeout(config common.ClientConfig) time.Duration {
	return time.Duration(config.TimeoutSecond) * time.Second
}
