// Package tcp implements the TCP transport of the daemon. It provides the TCP
// specific connectors for the base package.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector. Accepted
//     connections get TCP_NODELAY, keep-alive and a zero linger time.
//
// Peers connecting over TCP from an address other than loopback are remote peers,
// the server limits them to the configured remote operations.
package tcp
