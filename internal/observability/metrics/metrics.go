// Package metrics exposes prometheus counters for the ledger core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

type Metrics struct {
	debits         *prometheus.CounterVec
	credits        prometheus.Counter
	insufficient   prometheus.Counter
	enqueued       prometheus.Counter
	drained        prometheus.Counter
	drainFailures  prometheus.Counter
	reconciliation prometheus.Counter
	verifyFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		debits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "ledger",
			Name:      "debits_total",
			Help:      "Committed debits by usage type.",
		}, []string{"usage_type"}),
		credits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "ledger",
			Name:      "credits_total",
			Help:      "Committed credits.",
		}),
		insufficient: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "ledger",
			Name:      "insufficient_balance_total",
			Help:      "Debits rejected for insufficient balance.",
		}),
		enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "sync",
			Name:      "pending_enqueued_total",
			Help:      "Mutations queued for later sync.",
		}),
		drained: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "sync",
			Name:      "pending_drained_total",
			Help:      "Queued mutations confirmed by the remote authority.",
		}),
		drainFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "sync",
			Name:      "drain_failures_total",
			Help:      "Drain passes stopped by a remote failure.",
		}),
		reconciliation: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "sync",
			Name:      "reconciliations_total",
			Help:      "Local state overwritten by the remote authority.",
		}),
		verifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sparkmatch",
			Subsystem: "payment",
			Name:      "verification_failures_total",
			Help:      "Gateway payments failing signature verification.",
		}),
	}
}

func (m *Metrics) RecordDebit(usageType string) {
	if m == nil {
		return
	}
	m.debits.WithLabelValues(usageType).Inc()
}

func (m *Metrics) RecordCredit() {
	if m == nil {
		return
	}
	m.credits.Inc()
}

func (m *Metrics) RecordInsufficientBalance() {
	if m == nil {
		return
	}
	m.insufficient.Inc()
}

func (m *Metrics) RecordEnqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *Metrics) RecordDrained() {
	if m == nil {
		return
	}
	m.drained.Inc()
}

func (m *Metrics) RecordDrainFailure() {
	if m == nil {
		return
	}
	m.drainFailures.Inc()
}

func (m *Metrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.reconciliation.Inc()
}

func (m *Metrics) RecordVerificationFailure() {
	if m == nil {
		return
	}
	m.verifyFailures.Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
