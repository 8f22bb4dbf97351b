// Package transport defines the interfaces between the daemon and the network.
//
// Key Components:
//
//   - IRPCServerTransport: the connection acceptor. It owns the listening socket and
//     passes every accepted connection to an AdmitFunc. A connection the server
//     refuses (ErrPoolExhausted, ErrShuttingDown) is closed right away, the peer
//     sees the connection drop.
//
//   - IRPCClientTransport: one client connection, used synchronously. Every packet
//     sent is answered by exactly one packet.
//
// Implementations live in the base package, the tcp and unix packages only provide
// the protocol specific connectors.
package transport
