package store

import (
	"fmt"
	"github.com/ValentinKolb/tcsd/lib/ps"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IKeyStore is the interface of the key hierarchy index: the registered keys,
// keyed by uuid, forming a forest rooted at the storage root key (ps.SRKUUID).
// Write operations return a *Error (nil on success).
type IKeyStore interface {
	// Insert registers a new key. The parent must be the SRK or an already registered key.
	// The change is persisted before Insert returns.
	Insert(rec ps.KeyRecord) (err error)
	// Remove unregisters a key. Keys that still have children cannot be removed.
	// The change is persisted before Remove returns.
	Remove(id uuid.UUID) (err error)
	// Lookup returns the record for a key. The boolean return value indicates whether the key was found.
	Lookup(id uuid.UUID) (rec ps.KeyRecord, loaded bool)
	// ChildrenOf returns the uuids of all keys whose parent is id, in store order.
	ChildrenOf(id uuid.UUID) []uuid.UUID
	// Records returns a copy of all records in store order.
	Records() []ps.KeyRecord
	// Len returns the number of registered keys.
	Len() int
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. Errors with the same code match with errors.Is.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KeyStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new KeyStoreError with the given code and message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Sentinel values for errors.Is, one per return code
var (
	ErrFormat         = &Error{Code: RetCFormat}
	ErrIO             = &Error{Code: RetCIO}
	ErrKeyExists      = &Error{Code: RetCKeyExists}
	ErrKeyNotFound    = &Error{Code: RetCKeyNotFound}
	ErrDanglingParent = &Error{Code: RetCDanglingParent}
	ErrHasChildren    = &Error{Code: RetCHasChildren}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                 // 1: Operation failed due to an internal error.
	RetCFormat                        // 2: The persistent store or the hierarchy is malformed.
	RetCIO                            // 3: Reading or writing the persistent store failed.
	RetCKeyExists                     // 4: A key with this uuid is already registered.
	RetCKeyNotFound                   // 5: No key with this uuid is registered.
	RetCDanglingParent                // 6: The parent of the key is not registered.
	RetCHasChildren                   // 7: The key still has registered children.
)

// String returns the name of the return code
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCFormat:
		return "Format"
	case RetCIO:
		return "IO"
	case RetCKeyExists:
		return "KeyExists"
	case RetCKeyNotFound:
		return "KeyNotFound"
	case RetCDanglingParent:
		return "DanglingParent"
	case RetCHasChildren:
		return "HasChildren"
	default:
		return "Unknown"
	}
}
