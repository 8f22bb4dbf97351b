// Package unix implements the transport of the daemon over Unix domain sockets.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates the socket (replacing a stale socket file) and makes
//     it accessible to all local users
//
// Peers on a Unix socket are always local peers.
package unix
