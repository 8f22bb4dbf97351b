package client

import (
	"fmt"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/packet"
	"github.com/ValentinKolb/tcsd/rpc/serializer"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter stores all data needed to talk to the daemon
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest sends one request and waits for its response.
// A result code other than ResultSuccess is returned as *common.ResultError.
func invokeRPCRequest(ord common.Ordinal, contextID uint32, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, packet.Header, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, packet.Header{}, err
	}

	// Send the request
	header, respBytes, err := transport.Send(packet.Header{Code: uint32(ord), Context: contextID}, reqBytes)
	if err != nil {
		return nil, header, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if len(respBytes) > 0 {
		if err := serializer.Deserialize(respBytes, resp); err != nil {
			return nil, header, fmt.Errorf("RPC %s - invalid response: %w", ord, err)
		}
	}

	// Check if the response is an error response
	if code := common.ResultCode(header.Code); code != common.ResultSuccess {
		return nil, header, &common.ResultError{Code: code, Msg: resp.Err}
	}

	return resp, header, nil
}
