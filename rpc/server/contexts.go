package server

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ContextState is the life cycle state of a connection context
type ContextState int32

const (
	ContextActive  ContextState = iota // usable by requests of the owning connection
	ContextClosing                     // close requested, no further requests are accepted
)

func (s ContextState) String() string {
	switch s {
	case ContextActive:
		return "active"
	case ContextClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ConnectionContext is the per session state a client refers to by its ID
type ConnectionContext struct {
	ID           uint32
	PeerHostname string
	ConnID       uint64 // connection that opened the context
	State        ContextState
	Opened       time.Time
}

// ContextTable holds all live connection contexts. It synchronises itself and is
// independent of the thread manager lock.
type ContextTable struct {
	next     atomic.Uint32
	contexts *xsync.MapOf[uint32, ConnectionContext]
}

// NewContextTable creates an empty context table
func NewContextTable() *ContextTable {
	return &ContextTable{
		contexts: xsync.NewMapOf[uint32, ConnectionContext](),
	}
}

// Allocate registers a new active context and returns its ID.
// IDs are handed out in increasing order, 0 is never used and an ID is never issued
// twice while it is live, even after the counter wrapped around.
func (t *ContextTable) Allocate(peer string, connID uint64) uint32 {
	for {
		id := t.next.Add(1)
		if id == 0 {
			continue
		}
		ctx := ConnectionContext{
			ID:           id,
			PeerHostname: peer,
			ConnID:       connID,
			State:        ContextActive,
			Opened:       time.Now(),
		}
		if _, loaded := t.contexts.LoadOrStore(id, ctx); !loaded {
			return id
		}
	}
}

// Lookup returns a copy of the context with the given ID
func (t *ContextTable) Lookup(id uint32) (ConnectionContext, bool) {
	return t.contexts.Load(id)
}

// MarkClosing moves a live context to ContextClosing.
// It returns false if no context with this ID exists.
func (t *ContextTable) MarkClosing(id uint32) bool {
	_, ok := t.contexts.Compute(id, func(old ConnectionContext, loaded bool) (ConnectionContext, bool) {
		if !loaded {
			return old, true
		}
		old.State = ContextClosing
		return old, false
	})
	return ok
}

// Retire removes the context, its ID may be issued again afterwards
func (t *ContextTable) Retire(id uint32) {
	t.contexts.Delete(id)
}

// Len returns the number of live contexts
func (t *ContextTable) Len() int {
	return t.contexts.Size()
}
