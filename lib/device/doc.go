// Package device connects the daemon to the TPM. It treats the TPM as an opaque
// command processor: a marshaled command goes in, a marshaled response comes out.
// Command semantics, authorization sessions and cryptography are the client's business.
//
// Transports are provided by github.com/google/go-tpm (character devices, unix domain
// sockets and TCP simulators).
package device
