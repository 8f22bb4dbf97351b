// Package lstore implements the local, file backed key hierarchy index based on the
// store.IKeyStore interface. The complete hierarchy is held in memory and mirrored to
// a single persistent store file (see lib/ps).
//
// Key Features:
//   - Loads legacy and versioned stores, always writes the configured dialect
//   - Forest validation at load time: duplicate identifiers, dangling parents and
//     parent cycles make Open fail with store.ErrFormat
//   - Write-through: every Insert and Remove re-encodes the whole store
//   - Atomic file replacement: a failed or interrupted write leaves the previous
//     store intact on disk and the in-memory view unchanged
//
// Implementation Details:
//
//   - Store Order: records keep their insertion order, except that the storage root
//     key is always the first record. The versioned dialect is only detected when
//     the SRK is the first record, so a versioned store can only be written once
//     the SRK itself is registered.
//
//   - Concurrency: a RWMutex protects the map and the order. Lookups run in
//     parallel, mutations are exclusive and hold the lock while the file is written.
//     Serialisation against TPM commands is the caller's job (lib/lockmgr).
//
// Usage Example:
//
//	keys, err := lstore.Open("/var/tpm/system.data", ps.DialectVersioned)
//	if err != nil {
//		// refuse to start, the hierarchy cannot be trusted
//	}
//
//	err = keys.Insert(ps.KeyRecord{UUID: ps.SRKUUID, ParentUUID: ps.SRKUUID, PubData: srkPub})
//	children := keys.ChildrenOf(ps.SRKUUID)
package lstore
