package client

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/serializer"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/google/uuid"
)

// ErrNoContext is returned by operations called before OpenContext
var ErrNoContext = errors.New("client: no open context")

// NewRPCClient connects to the daemon. The connection is one session on the server,
// call OpenContext before any other operation and Close when done.
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RPCClient{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// RPCClient is a client for the daemon, bound to one connection and at most one
// open context. It is not safe for concurrent use.
type RPCClient struct {
	rpcClientAdapter
	contextID uint32
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// OpenContext opens a context on the server and returns its ID
func (c *RPCClient) OpenContext() (uint32, error) {
	if c.contextID != 0 {
		return 0, fmt.Errorf("context %d is already open", c.contextID)
	}
	resp, header, err := invokeRPCRequest(common.OrdOpenContext, 0, &common.Message{}, c.transport, c.serializer)
	if err != nil {
		return 0, err
	}
	if header.Context != resp.ContextID {
		return 0, fmt.Errorf("server returned context %d in the header but %d in the body", header.Context, resp.ContextID)
	}
	c.contextID = resp.ContextID
	Logger.Debugf("opened context %d", c.contextID)
	return c.contextID, nil
}

// ContextID returns the ID of the open context, 0 if none is open
func (c *RPCClient) ContextID() uint32 {
	return c.contextID
}

// CloseContext closes the context, which also ends the session on the server
func (c *RPCClient) CloseContext() error {
	if c.contextID == 0 {
		return ErrNoContext
	}
	_, _, err := invokeRPCRequest(common.OrdCloseContext, c.contextID, &common.Message{}, c.transport, c.serializer)
	c.contextID = 0
	return err
}

// Close closes the open context (if any) and the connection
func (c *RPCClient) Close() error {
	var err error
	if c.contextID != 0 {
		err = c.CloseContext()
	}
	return errors.Join(err, c.transport.Close())
}

// --------------------------------------------------------------------------
// Key Registry
// --------------------------------------------------------------------------

// RegisterKey adds a key to the persistent hierarchy of the daemon
func (c *RPCClient) RegisterKey(rec ps.KeyRecord) error {
	_, err := c.invoke(common.OrdRegisterKey, common.NewRegisterKeyRequest(rec))
	return err
}

// UnregisterKey removes a key without children from the persistent hierarchy
func (c *RPCClient) UnregisterKey(id uuid.UUID) error {
	_, err := c.invoke(common.OrdUnregisterKey, common.NewKeyRequest(id))
	return err
}

// GetRegisteredKey returns the record of a registered key
func (c *RPCClient) GetRegisteredKey(id uuid.UUID) (ps.KeyRecord, error) {
	resp, err := c.invoke(common.OrdGetRegisteredKey, common.NewKeyRequest(id))
	if err != nil {
		return ps.KeyRecord{}, err
	}
	return resp.KeyRecord(), nil
}

// EnumerateChildren returns the direct children of a key
func (c *RPCClient) EnumerateChildren(id uuid.UUID) ([]uuid.UUID, error) {
	resp, err := c.invoke(common.OrdEnumerateChildren, common.NewKeyRequest(id))
	if err != nil {
		return nil, err
	}
	return resp.UUIDs, nil
}

// ListKeys returns the identifiers of all registered keys in store order
func (c *RPCClient) ListKeys() ([]uuid.UUID, error) {
	resp, err := c.invoke(common.OrdListKeys, &common.Message{})
	if err != nil {
		return nil, err
	}
	return resp.UUIDs, nil
}

// --------------------------------------------------------------------------
// Device
// --------------------------------------------------------------------------

// Transmit sends a marshaled TPM command and returns the marshaled response
func (c *RPCClient) Transmit(cmd []byte) ([]byte, error) {
	resp, err := c.invoke(common.OrdTransmitCommand, common.NewTransmitMessage(cmd))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *RPCClient) invoke(ord common.Ordinal, req *common.Message) (*common.Message, error) {
	if c.contextID == 0 {
		return nil, ErrNoContext
	}
	resp, _, err := invokeRPCRequest(ord, c.contextID, req, c.transport, c.serializer)
	return resp, err
}
