// Package lockmgr implements the device critical section of the daemon.
//
// The TPM processes exactly one command at a time and the key hierarchy index must
// not change while a command that may depend on it is in flight. Every worker thread
// therefore runs index mutations and device commands through ILockManager.Do.
//
// The lock is independent of the thread pool lock and of the context table, a worker
// never holds the pool lock while it waits here.
//
// Timing:
//
//	Wait and hold times are recorded per operation as github.com/rcrowley/go-metrics
//	timers ("device.wait.<op>" and "device.hold.<op>"). LogStats prints a summary
//	periodically through any Printf style logger.
//
// Usage Example:
//
//	lm := lockmgr.NewLockManager(metrics.NewRegistry())
//	err := lm.Do("transmit", func() error {
//		resp, err = tpm.Execute(cmd)
//		return err
//	})
package lockmgr
