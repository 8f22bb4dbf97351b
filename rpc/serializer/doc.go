// Package serializer encodes the body of request and response packets. It defines a
// common interface and two implementations.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A 16 bit flag field names the
//     fields that are present, followed by those fields in a fixed order. Byte fields
//     are length prefixed, identifiers are written as their raw 16 bytes. Length
//     fields are checked against the remaining input before anything is allocated.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging and for clients in
//     other languages, but larger and slower.
//
// The ordinal and the result code are not part of the body, they travel in the
// packet header (see rpc/packet).
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
