// Package client implements a Go client for the daemon.
//
// A client owns one connection, which the daemon treats as one session. The
// session starts with OpenContext and ends with CloseContext (or when the
// connection is closed). All other operations refer to the open context.
//
// Errors reported by the daemon are returned as *common.ResultError and can be
// matched on their code:
//
//	if errors.Is(err, &common.ResultError{Code: common.ResultKeyNotFound}) { ... }
//
// Usage Example:
//
//	config := common.ClientConfig{Transport: "tcp", Endpoint: "localhost:30003", TimeoutSecond: 5}
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if _, err := c.OpenContext(); err != nil {
//		return err
//	}
//	children, err := c.EnumerateChildren(ps.SRKUUID)
package client
