package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the body of a single request or response packet.
// The operation (request) or result (response) travels in the packet header,
// which fields are used depends on the ordinal.
type Message struct {
	// Key registry fields
	UUID       uuid.UUID `json:"uuid"`                  // Used for: RegisterKey, UnregisterKey, GetRegisteredKey, EnumerateChildren
	ParentUUID uuid.UUID `json:"parent_uuid"`           // Used for: RegisterKey (request), GetRegisteredKey (response)
	PubData    []byte    `json:"pub_data,omitempty"`    // Used for: RegisterKey (request), GetRegisteredKey (response)
	Blob       []byte    `json:"blob,omitempty"`        // Used for: RegisterKey (request), GetRegisteredKey (response)
	VendorData []byte    `json:"vendor_data,omitempty"` // Used for: RegisterKey (request), GetRegisteredKey (response)
	CacheFlags uint16    `json:"cache_flags,omitempty"` // Used for: RegisterKey (request), GetRegisteredKey (response)

	// Response only fields
	UUIDs     []uuid.UUID `json:"uuids,omitempty"`      // Used for: EnumerateChildren, ListKeys
	ContextID uint32      `json:"context_id,omitempty"` // Used for: OpenContext
	Err       string      `json:"err,omitempty"`        // Empty if no error, otherwise contains the error message

	// Device passthrough
	Payload []byte `json:"payload,omitempty"` // Used for: TransmitCommand (raw TPM command / response)
}

// KeyRecord returns the key registry fields of the message as a record
func (m *Message) KeyRecord() ps.KeyRecord {
	return ps.KeyRecord{
		UUID:       m.UUID,
		ParentUUID: m.ParentUUID,
		PubData:    m.PubData,
		Blob:       m.Blob,
		VendorData: m.VendorData,
		CacheFlags: m.CacheFlags,
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRegisterKeyRequest creates a new RegisterKey request from a record
func NewRegisterKeyRequest(rec ps.KeyRecord) *Message {
	return &Message{
		UUID:       rec.UUID,
		ParentUUID: rec.ParentUUID,
		PubData:    rec.PubData,
		Blob:       rec.Blob,
		VendorData: rec.VendorData,
		CacheFlags: rec.CacheFlags,
	}
}

// NewKeyRequest creates a request that only names a key
// (UnregisterKey, GetRegisteredKey, EnumerateChildren)
func NewKeyRequest(id uuid.UUID) *Message {
	return &Message{UUID: id}
}

// NewKeyResponse creates a GetRegisteredKey response
func NewKeyResponse(rec ps.KeyRecord) *Message {
	return NewRegisterKeyRequest(rec)
}

// NewUUIDsResponse creates an EnumerateChildren or ListKeys response
func NewUUIDsResponse(ids []uuid.UUID) *Message {
	return &Message{UUIDs: ids}
}

// NewOpenContextResponse creates an OpenContext response
func NewOpenContextResponse(contextID uint32) *Message {
	return &Message{ContextID: contextID}
}

// NewTransmitMessage creates a TransmitCommand request or response
func NewTransmitMessage(payload []byte) *Message {
	return &Message{Payload: payload}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{Err: err}
}

// --------------------------------------------------------------------------
// Ordinal Definition
// --------------------------------------------------------------------------

// Ordinal identifies the operation of a request packet
type Ordinal uint32

const (
	OrdUnknown           Ordinal = iota
	OrdOpenContext               // Open a new context, starts the session
	OrdCloseContext              // Close the context, ends the session
	OrdRegisterKey               // Add a key to the persistent hierarchy
	OrdUnregisterKey             // Remove a key without children
	OrdGetRegisteredKey          // Read a registered key
	OrdEnumerateChildren         // List the direct children of a key
	OrdTransmitCommand           // Forward a raw command to the TPM
	OrdListKeys                  // List all registered keys in store order
)

var ordinalNames = map[Ordinal]string{
	OrdOpenContext:       "open-context",
	OrdCloseContext:      "close-context",
	OrdRegisterKey:       "register-key",
	OrdUnregisterKey:     "unregister-key",
	OrdGetRegisteredKey:  "get-registered-key",
	OrdEnumerateChildren: "enumerate-children",
	OrdTransmitCommand:   "transmit-command",
	OrdListKeys:          "list-keys",
}

// String returns the string representation of an Ordinal.
func (o Ordinal) String() string {
	if name, ok := ordinalNames[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(o))
}

// Valid reports whether o names a known operation
func (o Ordinal) Valid() bool {
	_, ok := ordinalNames[o]
	return ok
}

// ParseOrdinal converts the string representation back to an Ordinal
func ParseOrdinal(s string) (Ordinal, error) {
	for o, name := range ordinalNames {
		if name == s {
			return o, nil
		}
	}
	return OrdUnknown, fmt.Errorf("unknown ordinal: %s", s)
}

// MarshalJSON implements the json.Marshaller interface for Ordinal.
func (o Ordinal) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Ordinal.
func (o *Ordinal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOrdinal(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// --------------------------------------------------------------------------
// Result Codes
// --------------------------------------------------------------------------

// ResultCode is carried in the header of every response packet
type ResultCode uint32

const (
	ResultSuccess ResultCode = iota
	ResultInternal
	ResultBadParameter
	ResultInvalidContext
	ResultAccessDenied
	ResultKeyNotFound
	ResultKeyExists
	ResultDanglingParent
	ResultHasChildren
	ResultDeviceFailure
	ResultNoDevice
	ResultUnknownOrdinal
)

// String returns the string representation of a ResultCode.
func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInternal:
		return "internal error"
	case ResultBadParameter:
		return "bad parameter"
	case ResultInvalidContext:
		return "invalid context"
	case ResultAccessDenied:
		return "access denied"
	case ResultKeyNotFound:
		return "key not found"
	case ResultKeyExists:
		return "key already registered"
	case ResultDanglingParent:
		return "parent key not registered"
	case ResultHasChildren:
		return "key has registered children"
	case ResultDeviceFailure:
		return "device failure"
	case ResultNoDevice:
		return "no device"
	case ResultUnknownOrdinal:
		return "unknown ordinal"
	default:
		return fmt.Sprintf("unknown result (%d)", uint32(r))
	}
}

// ResultError is the client side view of a failed response
type ResultError struct {
	Code ResultCode
	Msg  string
}

func (e *ResultError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is matches on the result code, so errors.Is(err, &ResultError{Code: ResultKeyNotFound}) works
func (e *ResultError) Is(target error) bool {
	t, ok := target.(*ResultError)
	return ok && t.Code == e.Code
}
