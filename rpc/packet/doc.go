// Package packet frames requests and responses on a connection.
//
// Every packet is a 12 byte header followed by a body:
//
//	+----------------+----------------+----------------+-----------------+
//	| code (u32, BE) | ctx (u32, BE)  | len (u32, BE)  | body (len bytes)|
//	+----------------+----------------+----------------+-----------------+
//
// Requests carry the ordinal in code, responses the result code. The body is
// encoded by one of the serializers in rpc/serializer.
//
// Reading is split in ReadHeader and ReadBody so the server can wait for the next
// header while the worker is idle and only then mark it busy. A body larger than
// the receive buffer is a framing error, the caller closes the connection.
package packet
