package lockmgr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("lockmgr")

// metric name prefixes, the operation name is appended
const (
	waitTimerPrefix = "device.wait."
	holdTimerPrefix = "device.hold."
)

type lockMgrImpl struct {
	mu       sync.Mutex
	held     atomic.Bool
	registry metrics.Registry
}

// NewLockManager creates a lock manager that records the time spent waiting for and
// holding the critical section in registry. A nil registry gets a private one.
func NewLockManager(registry metrics.Registry) ILockManager {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &lockMgrImpl{
		registry: registry,
	}
}

func (lm *lockMgrImpl) Do(op string, fn func() error) error {
	start := time.Now()
	lm.mu.Lock()
	defer lm.mu.Unlock()

	acquired := time.Now()
	metrics.GetOrRegisterTimer(waitTimerPrefix+op, lm.registry).Update(acquired.Sub(start))

	lm.held.Store(true)
	defer func() {
		lm.held.Store(false)
		metrics.GetOrRegisterTimer(holdTimerPrefix+op, lm.registry).UpdateSince(acquired)
	}()

	return fn()
}

func (lm *lockMgrImpl) Held() bool {
	return lm.held.Load()
}
