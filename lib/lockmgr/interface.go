package lockmgr

// ILockManager serialises the device critical section: a mutation of the key
// hierarchy index or a command forwarded to the TPM. At most one fn runs at a time,
// across all worker threads.
type ILockManager interface {
	// Do runs fn inside the critical section and returns its error.
	// op names the operation for the wait and hold timers.
	Do(op string, fn func() error) error

	// Held reports whether a critical section is currently running
	Held() bool
}
