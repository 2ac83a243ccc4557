package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gatehouse/gatehouse/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, o := range snap.Outcomes {
		writeMetric(w, "gatehouse_auth_outcomes_total{op=%q,code=%q} %d\n", o.Op, o.Code, o.Count)
	}

	outcomes := make([]string, 0, len(snap.GateDecisions))
	for outcome := range snap.GateDecisions {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		writeMetric(w, "gatehouse_gate_decisions_total{outcome=%q} %d\n", outcome, snap.GateDecisions[outcome])
	}

	writeMetric(w, "gatehouse_password_hash_duration_seconds_count %d\n", snap.HashDurationCount)
	writeMetric(w, "gatehouse_password_hash_duration_seconds_sum %.6f\n", float64(snap.HashDurationTotalNs)/1e9)
	writeMetric(w, "gatehouse_sessions_reclaimed_total %d\n", snap.SessionsReclaimed)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
