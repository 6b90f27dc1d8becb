// Package metrics exposes the process-global Prometheus counters and
// gauges the coordinator, workers, and solver report to (spec §7 "surface
// persistent failure via... a process-global last_error metric").
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric this package registers.
const namespace = "intentbridge"

var (
	// LastErrorTimestamp records the unix time of the most recently
	// surfaced error, labeled by component, so an operator dashboard can
	// alert on "no errors reported in N minutes" going stale as well as
	// on errors themselves.
	LastErrorTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_error_timestamp_seconds",
		Help:      "Unix timestamp of the last error surfaced by a component.",
	}, []string{"component", "kind"})

	// ErrorsTotal counts every tagged error surfaced, labeled by kind and
	// retriable bit (spec §7's error-kind taxonomy).
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Count of tagged errors surfaced, by kind and retriable bit.",
	}, []string{"component", "kind", "retriable"})

	// IntentStatusTransitionsTotal counts every intent status transition,
	// labeled by from/to state, for tracking lifecycle throughput.
	IntentStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intent_status_transitions_total",
		Help:      "Count of intent status transitions, by from/to state.",
	}, []string{"from", "to"})

	// FillsAttemptedTotal counts every solver fill attempt, labeled by
	// outcome (filled, lost_race, gated, failed).
	FillsAttemptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "solver_fills_attempted_total",
		Help:      "Count of solver fill attempts, by outcome.",
	}, []string{"outcome"})

	// ActiveFillsGauge reports the current in-memory active fill count,
	// labeled by status (Pending, Confirmed, Claimed, Failed, Expired).
	ActiveFillsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "solver_active_fills",
		Help:      "Current count of in-memory active fills, by status.",
	}, []string{"status"})

	// RootSyncLagSeconds is set to 0 for a direction whenever the root-sync
	// coordinator finds it already in sync or pushes its root; nothing
	// advances it between those rounds.
	RootSyncLagSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "root_sync_lag_seconds",
		Help:      "Root sync lag by direction; reset to 0 when a direction is found in sync or pushed.",
	}, []string{"direction"})

	// RelayerNativeBalanceWei reports the relayer's native-coin balance on
	// each chain, polled on balance_check_interval_secs so an operator can
	// alert before a hot wallet runs dry mid-fill.
	RelayerNativeBalanceWei = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relayer_native_balance_wei",
		Help:      "Relayer's native-coin balance in wei, by chain.",
	}, []string{"chain"})
)

// RecordError records both the counter and the gauge for a surfaced error,
// so callers don't have to remember to update two metrics in lockstep.
func RecordError(component, kind string, retriable bool, nowUnix int64) {
	retriableLabel := "false"
	if retriable {
		retriableLabel = "true"
	}
	ErrorsTotal.WithLabelValues(component, kind, retriableLabel).Inc()
	LastErrorTimestamp.WithLabelValues(component, kind).Set(float64(nowUnix))
}

// RecordTransition increments the status-transition counter for one
// intent status change.
func RecordTransition(from, to string) {
	IntentStatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// Handler returns the standard Prometheus scrape handler, mounted by the
// HTTP server under /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
