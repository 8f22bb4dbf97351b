// Package store defines the key hierarchy index: the in-memory view of the keys
// registered in the system persistent store, and its error taxonomy.
//
// The package focuses on:
//   - A unified interface (IKeyStore) for registering, unregistering and looking up keys
//   - Structured errors with return codes that map directly to protocol result codes
//
// Key Components:
//
//   - IKeyStore Interface: insert/remove/lookup/children over records keyed by uuid.
//     Implementations keep the hierarchy a forest rooted at the storage root key:
//     every parent is either the SRK or a registered key, identifiers are unique and
//     parent chains never loop.
//
//   - Error System: a *Error carries a RetCode and a message. Errors compare by code
//     with errors.Is, so callers can test against the sentinels (ErrKeyNotFound, ...)
//     regardless of the message.
//
// Implementations:
//
//	- Local Store (lstore): backed by a single persistent store file. Every structural
//	  change is written through to disk with an atomic file replacement before it
//	  becomes visible in memory.
//	  Available in the "github.com/ValentinKolb/tcsd/lib/store/lstore" package.
//
// The index itself does not serialize writers against the TPM. Callers performing
// mutations are expected to hold the device critical section (see lib/lockmgr).
package store
