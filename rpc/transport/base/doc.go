// Package base implements the transport layer independent of the network protocol.
// The tcp and unix packages extend it with protocol specific connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - serverTransport: the connection acceptor. The accept loop never blocks on a
//     connection: it applies socket options, hands the connection to the admit
//     function and closes it if the server refuses it. Refusals because the pool is
//     exhausted are logged rate limited (golang.org/x/time/rate).
//
//   - clientTransport: one connection used synchronously, one request in flight at a
//     time. Frames are written with net.Buffers, header and body in one write.
//
// Shutdown:
//
//	Close stops the accept loop by closing the listener, Serve then returns nil.
//	Connections already admitted belong to the server and are drained by it.
package base
