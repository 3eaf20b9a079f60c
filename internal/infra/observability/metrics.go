package observability

import (
	"time"

	"github.com/classforge/feeplan-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the fee-plan service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	schedulesGenerated *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	plansTotal         *prometheus.CounterVec
	storeErrors        *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feeplan_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		schedulesGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_schedules_generated_total",
				Help: "Total installment schedules generated, by cadence.",
			},
			[]string{"cadence"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_validation_failures_total",
				Help: "Total submission rule failures, by rule.",
			},
			[]string{"rule"},
		),
		plansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_plans_total",
				Help: "Total fee plan submissions, by outcome.",
			},
			[]string{"outcome"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_store_errors_total",
				Help: "Total errors from the persistence layer.",
			},
			[]string{"store"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feeplan_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrScheduleGenerated counts one generated schedule for the cadence.
func (m *Metrics) IncrScheduleGenerated(cadence domain.InstallmentCadence) {
	m.schedulesGenerated.WithLabelValues(string(cadence)).Inc()
}

// IncrValidationFailure counts one failed submission rule.
func (m *Metrics) IncrValidationFailure(rule string) {
	m.validationFailures.WithLabelValues(rule).Inc()
}

// IncrPlan counts one plan submission outcome (created, updated, deleted, rejected).
func (m *Metrics) IncrPlan(outcome string) {
	m.plansTotal.WithLabelValues(outcome).Inc()
}

// IncrStoreError increments the persistence error counter.
func (m *Metrics) IncrStoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetFeeSnapshot returns a snapshot of fee-plan metrics suitable for the
// GET /v1/metrics/fees endpoint.
func (m *Metrics) GetFeeSnapshot() *domain.FeeMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	created := getCounterValue(m.plansTotal, "created")
	rejected := getCounterValue(m.plansTotal, "rejected")
	cacheHits := getCounterValue(m.cacheHits, "fee_types")
	cacheMisses := getCounterValue(m.cacheMisses, "fee_types")

	var generated, failures float64
	for _, cadence := range domain.AllCadences {
		generated += getCounterValue(m.schedulesGenerated, string(cadence))
	}
	for _, rule := range []string{
		domain.RuleNoComponents, domain.RuleFeeTypeRequired, domain.RuleUnknownCadence, domain.RuleCadenceBounds,
		domain.RuleTotalOutOfRange, domain.RuleEmptySchedule, domain.RuleDuplicateFeeType,
		domain.RuleSumExceedsTotal, domain.RuleCountExceedsTotal, domain.RuleZeroAmount,
		domain.RuleSumBelowTotal,
	} {
		failures += getCounterValue(m.validationFailures, rule)
	}

	rejectionRate := float64(0)
	if created+rejected > 0 {
		rejectionRate = rejected / (created + rejected)
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.FeeMetrics{
		PlansCreated:       int64(created),
		PlansRejected:      int64(rejected),
		SchedulesGenerated: int64(generated),
		ValidationFailures: int64(failures),
		RejectionRate:      rejectionRate,
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
