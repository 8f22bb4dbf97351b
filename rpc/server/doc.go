// Package server implements the daemon side of the protocol: the thread manager that
// bounds the number of served connections, the table of connection contexts and the
// dispatch of requests to the key store and the TPM.
//
// Key Components:
//
//   - ThreadManager: a fixed number of worker slots. Admit installs an accepted
//     connection in a free slot and starts its worker, or refuses it with
//     transport.ErrPoolExhausted. A worker serves one connection until the client
//     closes its context or the connection.
//
//   - ContextTable: the live connection contexts, backed by xsync.MapOf. Context IDs
//     are unique among live contexts and never 0.
//
//   - IRPCServerAdapter: connects ordinals to the component that implements them.
//     NewKeyStoreServerAdapter serves the key registry, NewDeviceServerAdapter
//     forwards raw commands to the TPM.
//
//   - RPCServer: ties acceptor, thread manager and adapters together and runs the
//     optional metrics endpoint.
//
// Request Processing:
//
//	A worker waits for a complete request while idle, then marks its slot busy and
//	dispatches it. Every ordinal except OpenContext requires a live context opened on
//	the same connection. Remote peers (TCP, not loopback) may only use the ordinals
//	listed in ServerConfig.RemoteOps. Key registry mutations and device commands run
//	inside the device critical section (lib/lockmgr).
//
// Locking:
//
//	The thread manager lock only guards slot state, it is never held while reading
//	from or writing to a connection. The context table and the device critical
//	section have their own synchronisation. A worker never holds more than one of
//	these at a time.
//
// Shutdown:
//
//	When the context passed to Serve is done the acceptor is closed, idle workers
//	are woken by an expired read deadline and busy workers finish their current
//	request. Serve returns once every slot is empty.
//
// Usage Example:
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer(), keys, tpm)
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := s.Serve(ctx); err != nil {
//		log.Fatalf("Server error: %v", err)
//	}
package server
