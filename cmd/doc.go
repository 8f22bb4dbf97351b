// Package cmd implements the command-line interface of tcsd. It provides a
// hierarchical command structure with operations for running the daemon and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the daemon
//   - key: Commands for the persistent key hierarchy (list, get, children, register, unregister)
//   - tpm: Passes marshaled TPM commands through the daemon
//   - inspect: Dumps a persistent store file without a running daemon
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See tcsd -help for a list of all commands.
package cmd
