package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport is the connection acceptor
type serverTransport struct {
	connector IServerConnector
	admit     transport.AdmitFunc

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool

	// Refused connections are logged at most a few times per interval, a client
	// hammering a full server must not flood the log
	refusedLog rate.Sometimes
	refused    atomic.Uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new connection acceptor using the given connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector:  connector,
		refusedLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(admit transport.AdmitFunc) {
	t.admit = admit
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	Logger.Infof("Starting %s server on %s with %d worker threads",
		t.connector.GetName(), listener.Addr(), config.MaxThreads)

	return t.Serve(listener)
}

func (t *serverTransport) Serve(listener net.Listener) error {
	if t.admit == nil {
		_ = listener.Close()
		return errors.New("no handler registered")
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	// Close may have been called before the listener was known
	if t.closed.Load() {
		_ = listener.Close()
		return nil
	}

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || isClosedErr(err) {
				return nil
			}
			delay = acceptBackoff(delay)
			Logger.Errorf("Accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	Logger.Infof("Stopped accepting %s connections on %s", t.connector.GetName(), t.listener.Addr())
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection passes one accepted connection to the server, it never blocks
// on the connection itself
func (t *serverTransport) handleConnection(conn net.Conn) {
	if err := t.connector.UpgradeConnection(conn); err != nil {
		Logger.Warningf("Failed to apply socket options to %s: %v", conn.RemoteAddr(), err)
	}

	err := t.admit(conn)
	if err == nil {
		return
	}

	_ = conn.Close()
	total := t.refused.Add(1)

	switch {
	case errors.Is(err, transport.ErrPoolExhausted):
		t.refusedLog.Do(func() {
			Logger.Warningf("Refused connection from %s: all worker threads are busy (%d refused so far)", conn.RemoteAddr(), total)
		})
	case errors.Is(err, transport.ErrShuttingDown):
		Logger.Debugf("Refused connection from %s during shutdown", conn.RemoteAddr())
	default:
		Logger.Errorf("Failed to admit connection from %s: %v", conn.RemoteAddr(), err)
	}
}
