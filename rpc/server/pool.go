package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ValentinKolb/tcsd/rpc/packet"
	"github.com/ValentinKolb/tcsd/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

// SlotState is the life cycle state of a worker slot
type SlotState int

const (
	SlotEmpty    SlotState = iota // free for a new connection
	SlotAccepted                  // connection installed, worker not yet running
	SlotRunning                   // worker is serving the connection
)

// session is the per connection state the dispatcher works with
type session struct {
	connID     uint64
	hostname   string
	remote     bool
	contextIDs []uint32
}

// dispatcher processes the requests of a session
type dispatcher interface {
	// dispatch handles one request and returns the response. end reports that the
	// session is over after the response was written.
	dispatch(sess *session, req packet.Header, body []byte) (resp packet.Header, respBody []byte, end bool)
	// endSession releases everything the session still holds
	endSession(sess *session)
}

// threadSlot is one of the fixed worker slots of the thread manager
type threadSlot struct {
	conn    net.Conn
	sess    *session
	buffer  []byte // receive buffer, kept across connections
	state   SlotState
	busy    bool // a request is being processed
	started time.Time
}

// ThreadManager bounds the number of concurrently served connections. Every admitted
// connection gets a slot and a worker goroutine that serves it until the session ends.
type ThreadManager struct {
	mu          sync.Mutex
	cond        *sync.Cond // signalled whenever a slot is released
	slots       []threadSlot
	activeCount int
	shutdown    bool
	nextConnID  uint64

	bufferSize int
	dispatcher dispatcher

	metrics *poolMetrics
}

// newThreadManager creates a thread manager with maxThreads slots. Every slot gets a
// receive buffer of bufferSize bytes, which bounds the size of a request.
func newThreadManager(maxThreads, bufferSize int, d dispatcher, set *metrics.Set) *ThreadManager {
	tm := &ThreadManager{
		slots:      make([]threadSlot, maxThreads),
		bufferSize: bufferSize,
		dispatcher: d,
	}
	tm.cond = sync.NewCond(&tm.mu)
	tm.metrics = newPoolMetrics(set, tm)
	return tm
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Admit installs conn in a free slot and starts its worker.
// It returns transport.ErrShuttingDown once Shutdown was called and
// transport.ErrPoolExhausted if every slot is in use. On error the caller still owns
// conn and must close it.
func (tm *ThreadManager) Admit(conn net.Conn) error {
	tm.mu.Lock()

	if tm.shutdown {
		tm.mu.Unlock()
		return transport.ErrShuttingDown
	}

	idx := -1
	for i := range tm.slots {
		if tm.slots[i].state == SlotEmpty {
			idx = i
			break
		}
	}
	if idx < 0 {
		tm.mu.Unlock()
		tm.metrics.refused.Inc()
		return transport.ErrPoolExhausted
	}

	slot := &tm.slots[idx]
	slot.state = SlotAccepted

	// Prepare the slot, on failure it goes straight back to empty
	tm.nextConnID++
	sess, err := newSession(conn, tm.nextConnID)
	if err != nil {
		slot.state = SlotEmpty
		tm.mu.Unlock()
		return err
	}
	if len(slot.buffer) != tm.bufferSize {
		slot.buffer = make([]byte, tm.bufferSize)
	}
	slot.conn = conn
	slot.sess = sess
	slot.busy = false
	slot.started = time.Now()
	tm.activeCount++
	tm.mu.Unlock()

	tm.metrics.accepted.Inc()
	Logger.Debugf("Accepted connection %d from %s in slot %d", sess.connID, sess.hostname, idx)

	go tm.serve(idx)
	return nil
}

// Shutdown stops admitting connections and waits until every worker has finished.
// Idle workers are woken up by an expired read deadline, a worker that is processing
// a request finishes it and writes the response before it exits.
func (tm *ThreadManager) Shutdown() {
	tm.mu.Lock()
	tm.shutdown = true
	var idle []net.Conn
	for i := range tm.slots {
		if tm.slots[i].state != SlotEmpty && !tm.slots[i].busy {
			idle = append(idle, tm.slots[i].conn)
		}
	}
	Logger.Infof("Shutting down thread manager, waiting for %d workers (%d idle)", tm.activeCount, len(idle))
	tm.mu.Unlock()

	for _, conn := range idle {
		_ = conn.SetReadDeadline(time.Now())
	}

	tm.mu.Lock()
	for tm.activeCount > 0 {
		tm.cond.Wait()
	}
	tm.mu.Unlock()
	Logger.Infof("All workers finished")
}

// Active returns the number of occupied slots
func (tm *ThreadManager) Active() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.activeCount
}

// MaxThreads returns the number of slots
func (tm *ThreadManager) MaxThreads() int {
	return len(tm.slots)
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

// serve is the worker of slot idx. The pool lock is only held to change the slot
// state, never while reading from or writing to the connection.
func (tm *ThreadManager) serve(idx int) {
	tm.mu.Lock()
	slot := &tm.slots[idx]
	slot.state = SlotRunning
	conn, sess, buf := slot.conn, slot.sess, slot.buffer
	tm.mu.Unlock()

	defer tm.release(idx, conn, sess)

	framer := packet.NewFramer(conn, buf)
	for {
		// Idle: wait for the next request
		req, body, err := framer.ReadRequest()
		if err != nil {
			tm.logReadError(sess, err)
			return
		}

		tm.mu.Lock()
		if tm.shutdown {
			tm.mu.Unlock()
			Logger.Debugf("Connection %d: dropping request, server is shutting down", sess.connID)
			return
		}
		slot.busy = true
		tm.mu.Unlock()

		start := time.Now()
		resp, respBody, end := tm.dispatcher.dispatch(sess, req, body)
		err = packet.WriteFrame(conn, resp, respBody)
		tm.metrics.observe(req.Code, start)

		tm.mu.Lock()
		slot.busy = false
		stop := tm.shutdown || end
		tm.mu.Unlock()

		if err != nil {
			Logger.Warningf("Connection %d: failed to write response: %v", sess.connID, err)
			return
		}
		if stop {
			return
		}
	}
}

// release ends the session, closes the connection and frees the slot
func (tm *ThreadManager) release(idx int, conn net.Conn, sess *session) {
	tm.dispatcher.endSession(sess)
	_ = conn.Close()

	tm.mu.Lock()
	slot := &tm.slots[idx]
	duration := time.Since(slot.started)
	slot.conn = nil
	slot.sess = nil
	slot.busy = false
	slot.state = SlotEmpty
	tm.activeCount--
	tm.cond.Broadcast()
	tm.mu.Unlock()

	Logger.Debugf("Connection %d from %s closed after %s", sess.connID, sess.hostname, duration.Round(time.Millisecond))
}

func (tm *ThreadManager) logReadError(sess *session, err error) {
	switch {
	case errors.Is(err, io.EOF):
		Logger.Debugf("Connection %d closed by client", sess.connID)
	case errors.Is(err, os.ErrDeadlineExceeded):
		Logger.Debugf("Connection %d woken up for shutdown", sess.connID)
	case errors.Is(err, packet.ErrFraming), errors.Is(err, packet.ErrShortRead):
		Logger.Warningf("Connection %d: %v", sess.connID, err)
	default:
		Logger.Errorf("Connection %d: read failed: %v", sess.connID, err)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newSession derives the peer identity from the connection. Peers on TCP connections
// from non loopback addresses are remote.
func newSession(conn net.Conn, connID uint64) (*session, error) {
	sess := &session{connID: connID}

	// Unnamed unix socket peers may come without an address
	if _, ok := conn.(*net.UnixConn); ok {
		sess.hostname = "localhost"
		return sess, nil
	}

	addr := conn.RemoteAddr()
	if addr == nil {
		return nil, errors.New("connection has no remote address")
	}

	switch a := addr.(type) {
	case *net.TCPAddr:
		sess.hostname = a.IP.String()
		sess.remote = !a.IP.IsLoopback()
	case *net.UnixAddr:
		sess.hostname = "localhost"
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil, fmt.Errorf("unsupported peer address %q: %w", addr, err)
		}
		ip := net.ParseIP(host)
		sess.hostname = host
		sess.remote = ip == nil || !ip.IsLoopback()
	}
	return sess, nil
}
