package ps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Layout constants
// --------------------------------------------------------------------------

const (
	// CurrentVersion is the only marker value of the Versioned dialect
	CurrentVersion byte = 1

	uuidSize = 16

	// probeSize is the number of bytes peeked to guess the dialect:
	// marker + key count + first uuid
	probeSize = 1 + 4 + uuidSize

	legacyHeaderSize    = 4
	versionedHeaderSize = 1 + 4

	// uuid, parent uuid, pub_data_size, blob_size, cache_flags
	legacyRecordHeaderSize = 2*uuidSize + 3*2
	// uuid, parent uuid, pub_data_size, blob_size, vendor_data_size, cache_flags
	versionedRecordHeaderSize = 2*uuidSize + 2 + 2 + 4 + 2

	maxPubDataSize    = 0xFFFF
	maxBlobSize       = 0xFFFF
	maxVendorDataSize = 0xFFFFFFFF
)

// byteOrder is used for every multi byte integer in the store
var byteOrder = binary.LittleEndian

// SRKUUID is the well known identifier of the storage root key. It is the root
// of the key hierarchy and never has a stored parent of its own.
var SRKUUID = uuid.UUID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrIO is the root of all read and write failures
	ErrIO = errors.New("ps: i/o error")
	// ErrShortRead is returned when the source ends inside a header or record
	ErrShortRead = fmt.Errorf("%w: short read", ErrIO)

	// ErrFormat is the root of all layout violations
	ErrFormat = errors.New("ps: format error")
	// ErrUnsupportedVersion is returned for a Versioned header with a marker other than CurrentVersion
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)
	// ErrAmbiguousDialect is returned by Encode when the produced bytes would be detected as the other dialect
	ErrAmbiguousDialect = fmt.Errorf("%w: output would be detected as a different dialect", ErrFormat)
	// ErrTooLarge is returned by Encode when a payload does not fit its size field
	ErrTooLarge = fmt.Errorf("%w: field too large", ErrFormat)
	// ErrTrailingData is returned by Decoder.CheckTrailing
	ErrTrailingData = fmt.Errorf("%w: trailing data after last record", ErrFormat)
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Dialect is one of the two on-disk layouts
type Dialect uint8

const (
	DialectLegacy Dialect = iota
	DialectVersioned
)

// String returns the string representation of a Dialect.
func (d Dialect) String() string {
	switch d {
	case DialectLegacy:
		return "legacy"
	case DialectVersioned:
		return "versioned"
	default:
		return "unknown"
	}
}

// ParseDialect converts a configuration value into a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "legacy", "0":
		return DialectLegacy, nil
	case "versioned", "1":
		return DialectVersioned, nil
	default:
		return 0, fmt.Errorf("invalid dialect: %s (expected legacy or versioned)", s)
	}
}

// StoreHeader describes a store file. Version is only meaningful for DialectVersioned.
type StoreHeader struct {
	Dialect  Dialect
	Version  byte
	KeyCount uint32
}

// NewStoreHeader returns the header for count records in the given dialect
func NewStoreHeader(dialect Dialect, count int) StoreHeader {
	h := StoreHeader{Dialect: dialect, KeyCount: uint32(count)}
	if dialect == DialectVersioned {
		h.Version = CurrentVersion
	}
	return h
}

// KeyRecord is a single registered key. VendorData is always empty in the Legacy dialect.
type KeyRecord struct {
	UUID       uuid.UUID
	ParentUUID uuid.UUID
	PubData    []byte
	Blob       []byte
	VendorData []byte
	CacheFlags uint16
}

// Equal reports whether both records carry the same fields. Nil and empty payloads are equal.
func (r KeyRecord) Equal(o KeyRecord) bool {
	return r.UUID == o.UUID &&
		r.ParentUUID == o.ParentUUID &&
		r.CacheFlags == o.CacheFlags &&
		bytes.Equal(r.PubData, o.PubData) &&
		bytes.Equal(r.Blob, o.Blob) &&
		bytes.Equal(r.VendorData, o.VendorData)
}

// Clone returns a deep copy, detaching the payloads from any shared buffer
func (r KeyRecord) Clone() KeyRecord {
	r.PubData = cloneBytes(r.PubData)
	r.Blob = cloneBytes(r.Blob)
	r.VendorData = cloneBytes(r.VendorData)
	return r
}

// IsRoot reports whether the record is the storage root key itself
func (r KeyRecord) IsRoot() bool {
	return r.UUID == SRKUUID
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// --------------------------------------------------------------------------
// Dialect detection
// --------------------------------------------------------------------------

// Detect applies the dialect heuristic to the first bytes of a store.
// A probe shorter than 21 bytes is never Versioned.
func Detect(probe []byte) Dialect {
	if len(probe) < probeSize {
		return DialectLegacy
	}
	if probe[0] != CurrentVersion {
		return DialectLegacy
	}
	if byteOrder.Uint32(probe[1:5]) == 0 {
		return DialectLegacy
	}
	if !bytes.Equal(probe[5:probeSize], SRKUUID[:]) {
		return DialectLegacy
	}
	return DialectVersioned
}

// detectShort handles sources that end before the probe is complete. Only the
// two possible encodings of an empty store are accepted.
func detectShort(data []byte) (StoreHeader, bool) {
	switch {
	case len(data) == versionedHeaderSize && data[0] == CurrentVersion && byteOrder.Uint32(data[1:]) == 0:
		return NewStoreHeader(DialectVersioned, 0), true
	case len(data) == legacyHeaderSize && byteOrder.Uint32(data) == 0:
		return NewStoreHeader(DialectLegacy, 0), true
	default:
		return StoreHeader{}, false
	}
}
