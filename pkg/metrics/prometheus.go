package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the ledger and reward collectors.
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Collector owns a private registry so tests and multiple instances never
// collide on the global default registerer. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry          *prometheus.Registry
	movements         *prometheus.CounterVec
	movementDuration  prometheus.Histogram
	versionConflicts  prometheus.Counter
	idempotentReplays prometheus.Counter
	rewardAccounts    *prometheus.CounterVec
	rewardTicks       *prometheus.CounterVec
	reconMismatches   prometheus.Counter
}

// New creates a Collector with all ledger metrics registered.
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		movements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_movements_total",
			Help: "Funds movements by category and outcome",
		}, []string{"category", "outcome"}),
		movementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_movement_duration_seconds",
			Help:    "Time taken to apply a funds movement, retries included",
			Buckets: prometheus.DefBuckets,
		}),
		versionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_version_conflicts_total",
			Help: "Optimistic concurrency conflicts that forced a retry",
		}),
		idempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_idempotent_replays_total",
			Help: "Requests answered from a previously recorded ledger entry",
		}),
		rewardAccounts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_accounts_total",
			Help: "Reward processor per-account outcomes",
		}, []string{"outcome"}),
		rewardTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reward_ticks_total",
			Help: "Reward processor ticks by outcome",
		}, []string{"outcome"}),
		reconMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_mismatches_total",
			Help: "Wallets whose cached balances disagree with the ledger",
		}),
	}
}

// RecordMovement counts a movement attempt and observes its latency.
func (c *Collector) RecordMovement(category, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.movements.WithLabelValues(category, outcome).Inc()
	c.movementDuration.Observe(d.Seconds())
}

func (c *Collector) VersionConflict() {
	if c == nil {
		return
	}
	c.versionConflicts.Inc()
}

func (c *Collector) IdempotentReplay() {
	if c == nil {
		return
	}
	c.idempotentReplays.Inc()
}

func (c *Collector) RewardAccount(outcome string) {
	if c == nil {
		return
	}
	c.rewardAccounts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RewardTick(outcome string) {
	if c == nil {
		return
	}
	c.rewardTicks.WithLabelValues(outcome).Inc()
}

func (c *Collector) ReconciliationMismatch() {
	if c == nil {
		return
	}
	c.reconMismatches.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
