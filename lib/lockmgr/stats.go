package lockmgr

import (
	"context"
	"sort"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Printf is the logger interface used by go-metrics
type Printf func(format string, args ...interface{})

func (p Printf) Printf(format string, args ...interface{}) {
	p(format, args...)
}

// LogStats writes a summary of every timer in registry to out every interval until
// ctx is done. Durations are reported in microseconds.
func LogStats(ctx context.Context, registry metrics.Registry, interval time.Duration, out metrics.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			WriteStats(registry, out)
		}
	}
}

// WriteStats writes one summary line per timer in registry, sorted by name
func WriteStats(registry metrics.Registry, out metrics.Logger) {
	var names []string
	timers := make(map[string]metrics.Timer)
	registry.Each(func(name string, i interface{}) {
		if t, ok := i.(metrics.Timer); ok {
			names = append(names, name)
			timers[name] = t.Snapshot()
		}
	})
	sort.Strings(names)

	const us = float64(time.Microsecond)
	for _, name := range names {
		t := timers[name]
		ps := t.Percentiles([]float64{0.5, 0.99})
		out.Printf("%s: count=%d mean=%.1fus p50=%.1fus p99=%.1fus max=%.1fus",
			name, t.Count(), t.Mean()/us, ps[0]/us, ps[1]/us, float64(t.Max())/us)
	}
}
