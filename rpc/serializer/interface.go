package serializer

import "github.com/ValentinKolb/tcsd/rpc/common"

// IRPCSerializer encodes the body of a request or response packet. The packet
// header (ordinal or result code, context, body length) is not part of the body.
type IRPCSerializer interface {
	// Serialize encodes msg. A message without any set field may encode to an empty body.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, fields not present in b are reset.
	// b is only valid until the next read on the connection, msg must not alias it.
	Deserialize(b []byte, msg *common.Message) error
}
