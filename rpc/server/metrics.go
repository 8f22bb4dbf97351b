package server

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/tcsd/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// poolMetrics are the metrics of the thread manager, exported in Prometheus format
type poolMetrics struct {
	set      *metrics.Set
	accepted *metrics.Counter
	refused  *metrics.Counter
}

func newPoolMetrics(set *metrics.Set, tm *ThreadManager) *poolMetrics {
	if set == nil {
		set = metrics.NewSet()
	}
	set.NewGauge("tcsd_threads_active", func() float64 {
		return float64(tm.Active())
	})
	set.NewGauge("tcsd_threads_max", func() float64 {
		return float64(tm.MaxThreads())
	})
	return &poolMetrics{
		set:      set,
		accepted: set.NewCounter("tcsd_connections_accepted_total"),
		refused:  set.NewCounter("tcsd_connections_refused_total"),
	}
}

// observe records one processed request
func (m *poolMetrics) observe(code uint32, start time.Time) {
	ord := common.Ordinal(code)
	if !ord.Valid() {
		ord = common.OrdUnknown
	}
	m.set.GetOrCreateCounter(fmt.Sprintf(`tcsd_requests_total{ordinal=%q}`, ord)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`tcsd_request_duration_seconds{ordinal=%q}`, ord)).UpdateDuration(start)
}
