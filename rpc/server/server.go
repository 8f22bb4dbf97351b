package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/tcsd/lib/device"
	"github.com/ValentinKolb/tcsd/lib/lockmgr"
	"github.com/ValentinKolb/tcsd/lib/store"
	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/ValentinKolb/tcsd/rpc/packet"
	"github.com/ValentinKolb/tcsd/rpc/serializer"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("rpc")

// metricsShutdownTimeout bounds the graceful shutdown of the metrics endpoint
const metricsShutdownTimeout = 5 * time.Second

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer plus the key store and the device as
// parameters. The caller keeps ownership of keys and tpm.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		keys,
//		tpm,
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	keys store.IKeyStore,
	tpm device.ICommandProcessor,
) *RPCServer {
	if config.MaxThreads <= 0 {
		config.MaxThreads = common.DefaultMaxThreads
	}
	if config.BufferSize <= 0 {
		config.BufferSize = common.DefaultBufferSize
	}

	registry := gometrics.NewRegistry()
	locks := lockmgr.NewLockManager(registry)

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		contexts:   NewContextTable(),
		adapters:   make(map[common.Ordinal]IRPCServerAdapter),
		registry:   registry,
		metrics:    metrics.NewSet(),
	}

	for _, adapter := range []IRPCServerAdapter{
		NewKeyStoreServerAdapter(keys, locks),
		NewDeviceServerAdapter(tpm, locks),
	} {
		for _, ord := range adapter.Ordinals() {
			s.adapters[ord] = adapter
		}
	}

	s.pool = newThreadManager(config.MaxThreads, config.BufferSize, s, s.metrics)
	s.metrics.NewGauge("tcsd_contexts_open", func() float64 {
		return float64(s.contexts.Len())
	})
	s.metrics.NewGauge("tcsd_keys_registered", func() float64 {
		return float64(keys.Len())
	})

	transport.RegisterHandler(s.pool.Admit)

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", config.String())

	return s
}

// RPCServer ties the connection acceptor, the thread manager and the request
// dispatch together
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	contexts   *ContextTable
	pool       *ThreadManager
	adapters   map[common.Ordinal]IRPCServerAdapter

	registry gometrics.Registry // device critical section timers
	metrics  *metrics.Set       // pool metrics
}

// Serve creates the listener from the configuration and serves it until ctx is done.
// It then stops accepting, waits for all workers and returns.
func (s *RPCServer) Serve(ctx context.Context) error {
	return s.run(ctx, func() error { return s.transport.Listen(s.config) })
}

// ServeListener is Serve with an existing listener
func (s *RPCServer) ServeListener(ctx context.Context, l net.Listener) error {
	return s.run(ctx, func() error { return s.transport.Serve(l) })
}

// Contexts returns the context table of the server
func (s *RPCServer) Contexts() *ContextTable {
	return s.contexts
}

// ThreadManager returns the thread manager of the server
func (s *RPCServer) ThreadManager() *ThreadManager {
	return s.pool
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *RPCServer) run(ctx context.Context, listen func() error) error {
	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if s.config.MetricsEndpoint != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			s.metrics.WritePrometheus(w)
			metrics.WriteProcessMetrics(w)
		})
		metricsServer = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

		g.Go(func() error {
			Logger.Infof("Serving metrics on http://%s/metrics", s.config.MetricsEndpoint)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	if s.config.StatsInterval > 0 {
		g.Go(func() error {
			lockmgr.LogStats(gctx, s.registry, s.config.StatsInterval, lockmgr.Printf(Logger.Infof))
			return nil
		})
	}

	g.Go(func() error {
		if err := listen(); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Shutdown on cancellation or when any of the above failed
	g.Go(func() error {
		<-gctx.Done()
		Logger.Infof("Shutting down RPC server")

		if err := s.transport.Close(); err != nil {
			Logger.Warningf("Failed to close listener: %v", err)
		}
		s.pool.Shutdown()

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		if s.config.StatsInterval > 0 {
			lockmgr.WriteStats(s.registry, lockmgr.Printf(Logger.Infof))
		}
		return nil
	})

	return g.Wait()
}

// --------------------------------------------------------------------------
// Request Dispatch
// --------------------------------------------------------------------------

// dispatch implements the dispatcher interface of the thread manager
func (s *RPCServer) dispatch(sess *session, req packet.Header, body []byte) (packet.Header, []byte, bool) {
	ord := common.Ordinal(req.Code)
	code, msg, end := s.handle(sess, ord, req, body)

	respHeader := packet.Header{Code: uint32(code), Context: req.Context}
	if ord == common.OrdOpenContext && code == common.ResultSuccess {
		respHeader.Context = msg.ContextID
	}
	if code != common.ResultSuccess {
		Logger.Debugf("Connection %d: %s failed: %s (%s)", sess.connID, ord, code, msg.Err)
	}

	respBody, err := s.serializer.Serialize(*msg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		respHeader.Code = uint32(common.ResultInternal)
		respBody = nil
	}
	return respHeader, respBody, end
}

// handle checks access and context of a request and passes it to its adapter
func (s *RPCServer) handle(sess *session, ord common.Ordinal, req packet.Header, body []byte) (common.ResultCode, *common.Message, bool) {
	if !ord.Valid() {
		return common.ResultUnknownOrdinal, common.NewErrorResponse(fmt.Sprintf("unknown ordinal %d", req.Code)), false
	}

	if sess.remote && !s.config.RemoteAllowed(ord) {
		Logger.Warningf("Connection %d: remote peer %s is not allowed to use %s", sess.connID, sess.hostname, ord)
		return common.ResultAccessDenied, common.NewErrorResponse(fmt.Sprintf("%s is not allowed for remote peers", ord)), false
	}

	// Decode the request
	var msg common.Message
	if len(body) > 0 {
		if err := s.serializer.Deserialize(body, &msg); err != nil {
			return common.ResultBadParameter, common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err)), false
		}
	}

	if ord == common.OrdOpenContext {
		id := s.contexts.Allocate(sess.hostname, sess.connID)
		sess.contextIDs = append(sess.contextIDs, id)
		Logger.Debugf("Connection %d: opened context %d", sess.connID, id)
		return common.ResultSuccess, common.NewOpenContextResponse(id), false
	}

	// Every other operation needs a live context of this connection
	ctx, ok := s.contexts.Lookup(req.Context)
	if !ok || ctx.ConnID != sess.connID || ctx.State != ContextActive {
		return common.ResultInvalidContext, common.NewErrorResponse(fmt.Sprintf("context %d is not open on this connection", req.Context)), false
	}

	if ord == common.OrdCloseContext {
		s.closeContext(sess, req.Context)
		return common.ResultSuccess, &common.Message{}, true
	}

	adapter, ok := s.adapters[ord]
	if !ok {
		return common.ResultUnknownOrdinal, common.NewErrorResponse(fmt.Sprintf("no handler for %s", ord)), false
	}
	code, resp := adapter.Handle(ord, &msg)
	return code, resp, false
}

// endSession implements the dispatcher interface of the thread manager
func (s *RPCServer) endSession(sess *session) {
	for len(sess.contextIDs) > 0 {
		s.closeContext(sess, sess.contextIDs[0])
	}
}

// closeContext retires a context of the session
func (s *RPCServer) closeContext(sess *session, id uint32) {
	s.contexts.MarkClosing(id)
	s.contexts.Retire(id)
	for i, other := range sess.contextIDs {
		if other == id {
			sess.contextIDs = append(sess.contextIDs[:i], sess.contextIDs[i+1:]...)
			break
		}
	}
	Logger.Debugf("Connection %d: closed context %d", sess.connID, id)
}
