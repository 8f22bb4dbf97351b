package server

import (
	"github.com/ValentinKolb/tcsd/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// An adapter connects a group of ordinals to the component that implements them.
type IRPCServerAdapter interface {
	// Ordinals returns the ordinals handled by the adapter
	Ordinals() []common.Ordinal
	// Handle handles a request and returns the result code and the response body.
	// If an error occurs, its message should be set in the response.
	Handle(ord common.Ordinal, req *common.Message) (common.ResultCode, *common.Message)
}
