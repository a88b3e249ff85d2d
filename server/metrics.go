package server

import (
	"net/http"
	"net/http/pprof"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Observability
// --------------------------------------------------------------------------

// serverMetrics holds the per-server instruments. They live in their own
// set rather than the global registry so that multiple servers can coexist
// in one process, the observability handler writes the set out next to the
// global one.
type serverMetrics struct {
	set *metrics.Set

	snapshotSaves  *metrics.Counter
	snapshotErrors *metrics.Counter
	snapshotTime   *metrics.Summary
}

// newServerMetrics builds gauges over the store and the multiplexer counters
// plus the snapshot saver instruments.
func newServerMetrics(s *Server) *serverMetrics {
	set := metrics.NewSet()

	set.NewGauge(`kvasir_store_keys`, func() float64 {
		return float64(s.store.Len())
	})
	set.NewGauge(`kvasir_connections_accepted_total`, func() float64 {
		return float64(s.poll.Stats().AcceptedConns)
	})
	set.NewGauge(`kvasir_connections_closed_total`, func() float64 {
		return float64(s.poll.Stats().ClosedConns)
	})
	set.NewGauge(`kvasir_connections_active`, func() float64 {
		return float64(s.poll.Stats().ActiveConns)
	})
	set.NewGauge(`kvasir_requests_total`, func() float64 {
		return float64(s.poll.Stats().Requests)
	})
	set.NewGauge(`kvasir_network_read_bytes_total`, func() float64 {
		return float64(s.poll.Stats().BytesRead)
	})
	set.NewGauge(`kvasir_network_written_bytes_total`, func() float64 {
		return float64(s.poll.Stats().BytesWritten)
	})

	return &serverMetrics{
		set:            set,
		snapshotSaves:  set.NewCounter(`kvasir_snapshot_saves_total`),
		snapshotErrors: set.NewCounter(`kvasir_snapshot_save_errors_total`),
		snapshotTime:   set.NewSummary(`kvasir_snapshot_save_duration_seconds`),
	}
}

// observabilityMux serves /metrics in Prometheus text format plus the usual
// pprof endpoints.
func (s *Server) observabilityMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		s.metrics.set.WritePrometheus(w)
		metrics.WritePrometheus(w, true)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
