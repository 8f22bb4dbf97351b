package lockmgr

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoIsExclusive(t *testing.T) {
	lm := NewLockManager(nil)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = lm.Do("test", func() error {
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					inside.Add(-1)
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.False(t, lm.Held())
}

func TestDoReturnsError(t *testing.T) {
	lm := NewLockManager(nil)
	cause := errors.New("device gone")

	err := lm.Do("transmit", func() error {
		assert.True(t, lm.Held())
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.False(t, lm.Held())

	// The lock is released after an error
	require.NoError(t, lm.Do("transmit", func() error { return nil }))
}

func TestTimersAreRecorded(t *testing.T) {
	registry := metrics.NewRegistry()
	lm := NewLockManager(registry)

	for i := 0; i < 3; i++ {
		require.NoError(t, lm.Do("register", func() error { return nil }))
	}

	hold, ok := registry.Get(holdTimerPrefix + "register").(metrics.Timer)
	require.True(t, ok)
	assert.Equal(t, int64(3), hold.Count())

	wait, ok := registry.Get(waitTimerPrefix + "register").(metrics.Timer)
	require.True(t, ok)
	assert.Equal(t, int64(3), wait.Count())

	var lines []string
	WriteStats(registry, Printf(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}))
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "device.hold.register: count=3"))
	assert.True(t, strings.HasPrefix(lines[1], "device.wait.register: count=3"))
}
