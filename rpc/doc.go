// Package rpc contains the communication layer between the daemon and its clients.
//
// The package is organized into several subpackages:
//
//   - common: Message, ordinals and result codes, configuration structures and logging.
//
//   - packet: framing of requests and responses (12 byte header plus body).
//
//   - serializer: encoding of packet bodies (Binary, JSON).
//
//   - transport: connection acceptor and client transport with TCP and Unix socket
//     connectors.
//
//   - server: thread manager, connection contexts and request dispatch.
//
//   - client: Go client for the daemon.
package rpc
