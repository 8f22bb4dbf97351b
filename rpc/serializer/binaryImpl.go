package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/google/uuid"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasUUID       uint16 = 1 << 0
	hasParentUUID uint16 = 1 << 1
	hasPubData    uint16 = 1 << 2
	hasBlob       uint16 = 1 << 3
	hasVendorData uint16 = 1 << 4
	hasCacheFlags uint16 = 1 << 5
	hasUUIDs      uint16 = 1 << 6
	hasContextID  uint16 = 1 << 7
	hasErr        uint16 = 1 << 8
	hasPayload    uint16 = 1 << 9
)

// flagsSize is the size of the flags field that starts every message
const flagsSize = 2

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, flagsSize, b.sizeBytes(msg))

	var flags uint16

	if msg.UUID != uuid.Nil {
		flags |= hasUUID
		result = append(result, msg.UUID[:]...)
	}
	if msg.ParentUUID != uuid.Nil {
		flags |= hasParentUUID
		result = append(result, msg.ParentUUID[:]...)
	}
	if msg.PubData != nil {
		flags |= hasPubData
		result = appendBytes(result, msg.PubData)
	}
	if msg.Blob != nil {
		flags |= hasBlob
		result = appendBytes(result, msg.Blob)
	}
	if msg.VendorData != nil {
		flags |= hasVendorData
		result = appendBytes(result, msg.VendorData)
	}
	if msg.CacheFlags != 0 {
		flags |= hasCacheFlags
		result = binary.BigEndian.AppendUint16(result, msg.CacheFlags)
	}
	if msg.UUIDs != nil {
		flags |= hasUUIDs
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.UUIDs)))
		for _, id := range msg.UUIDs {
			result = append(result, id[:]...)
		}
	}
	if msg.ContextID != 0 {
		flags |= hasContextID
		result = binary.BigEndian.AppendUint32(result, msg.ContextID)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendBytes(result, []byte(msg.Err))
	}
	if msg.Payload != nil {
		flags |= hasPayload
		result = appendBytes(result, msg.Payload)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[0:flagsSize], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size
	if len(data) < flagsSize {
		return fmt.Errorf("data too short for message header")
	}

	flags := binary.BigEndian.Uint16(data[0:flagsSize])
	r := &reader{data: data, pos: flagsSize}

	*msg = common.Message{}

	if flags&hasUUID != 0 {
		msg.UUID = r.uuid("uuid")
	}
	if flags&hasParentUUID != 0 {
		msg.ParentUUID = r.uuid("parent uuid")
	}
	if flags&hasPubData != 0 {
		msg.PubData = r.bytes("public data")
	}
	if flags&hasBlob != 0 {
		msg.Blob = r.bytes("blob")
	}
	if flags&hasVendorData != 0 {
		msg.VendorData = r.bytes("vendor data")
	}
	if flags&hasCacheFlags != 0 {
		if b := r.next(2, "cache flags"); b != nil {
			msg.CacheFlags = binary.BigEndian.Uint16(b)
		}
	}
	if flags&hasUUIDs != 0 {
		if b := r.next(4, "uuid count"); b != nil {
			count := binary.BigEndian.Uint32(b)
			// The count is checked against the remaining data before allocating
			if uint64(count)*16 > uint64(len(data)-r.pos) {
				return fmt.Errorf("data too short for %d uuids", count)
			}
			msg.UUIDs = make([]uuid.UUID, count)
			for i := range msg.UUIDs {
				msg.UUIDs[i] = r.uuid("uuid list")
			}
		}
	}
	if flags&hasContextID != 0 {
		if b := r.next(4, "context id"); b != nil {
			msg.ContextID = binary.BigEndian.Uint32(b)
		}
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("error"))
	}
	if flags&hasPayload != 0 {
		msg.Payload = r.bytes("payload")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := flagsSize

	if msg.UUID != uuid.Nil {
		size += 16
	}
	if msg.ParentUUID != uuid.Nil {
		size += 16
	}
	if msg.PubData != nil {
		size += 4 + len(msg.PubData) // 4 bytes for length + data
	}
	if msg.Blob != nil {
		size += 4 + len(msg.Blob)
	}
	if msg.VendorData != nil {
		size += 4 + len(msg.VendorData)
	}
	if msg.CacheFlags != 0 {
		size += 2
	}
	if msg.UUIDs != nil {
		size += 4 + 16*len(msg.UUIDs)
	}
	if msg.ContextID != 0 {
		size += 4
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Payload != nil {
		size += 4 + len(msg.Payload)
	}

	return size
}

// appendBytes appends a length prefixed byte slice
func appendBytes(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}

// reader reads fields from a message, the first error is kept and all further reads
// return zero values
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) next(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) uuid(field string) uuid.UUID {
	var id uuid.UUID
	copy(id[:], r.next(16, field))
	return id
}

// bytes reads a length prefixed field into a fresh slice (never aliasing data),
// a zero length yields an empty, non nil slice
func (r *reader) bytes(field string) []byte {
	lenBytes := r.next(4, field+" length")
	if lenBytes == nil {
		return nil
	}
	b := r.next(int(binary.BigEndian.Uint32(lenBytes)), field)
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
