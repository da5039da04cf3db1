// Package telemetry holds the prometheus collectors for the market core.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	betsPlaced     *prometheus.CounterVec
	betVolume      *prometheus.CounterVec
	betsRejected   *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	ledgerRetries  prometheus.Counter
	ledgerDuration *prometheus.HistogramVec
	eventFailures  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "bets_placed_total",
			Help:      "Bets admitted into a pool.",
		}, []string{"side"}),
		betVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "bet_volume_units_total",
			Help:      "Stake admitted, in whole currency units.",
		}, []string{"side"}),
		betsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "bets_rejected_total",
			Help:      "Bets refused by admission, by reason.",
		}, []string{"reason"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "settlements_total",
			Help:      "Markets finalized, by kind.",
		}, []string{"kind"}),
		ledgerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "ledger_conflict_retries_total",
			Help:      "Atomic ledger updates retried after a storage conflict.",
		}),
		ledgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blink",
			Name:      "ledger_update_seconds",
			Help:      "Time spent inside the per-market atomic scope.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		eventFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blink",
			Name:      "event_publish_failures_total",
			Help:      "Domain events that failed to reach at least one transport.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.betsPlaced, m.betVolume, m.betsRejected, m.settlements,
			m.ledgerRetries, m.ledgerDuration, m.eventFailures,
		)
	}
	return m
}

func (m *Metrics) BetPlaced(side string, units float64) {
	if m == nil {
		return
	}
	m.betsPlaced.WithLabelValues(side).Inc()
	m.betVolume.WithLabelValues(side).Add(units)
}

func (m *Metrics) BetRejected(reason string) {
	if m == nil {
		return
	}
	m.betsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) MarketFinalized(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

func (m *Metrics) LedgerRetry() {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc()
}

func (m *Metrics) ObserveLedgerUpdate(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) EventPublishFailed() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}
