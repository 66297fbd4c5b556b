package metrics

import (
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"daorewards/core/events"
	"daorewards/core/types"
)

// RewardsMetrics tracks engine activity: emitted events, the amounts moving
// through distributions and the latency of each operation.
type RewardsMetrics struct {
	events    *prometheus.CounterVec
	funded    *prometheus.CounterVec
	claimed   *prometheus.CounterVec
	withdrawn *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	heights   prometheus.Gauge
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

// Rewards returns the lazily-initialised metrics registered with the default
// Prometheus registerer.
func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = NewRewardsMetrics("daorewards", prometheus.DefaultRegisterer)
	})
	return rewardsRegistry
}

// NewRewardsMetrics builds and registers a metrics set under namespace.
func NewRewardsMetrics(namespace string, reg prometheus.Registerer) *RewardsMetrics {
	m := &RewardsMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Count of engine events by type.",
		}, []string{"type"}),
		funded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "funded_amount_total",
			Help:      "Amount added to distributions by engine and denom.",
		}, []string{"engine", "denom"}),
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "claimed_amount_total",
			Help:      "Amount paid out to claimants by engine and denom.",
		}, []string{"engine", "denom"}),
		withdrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "withdrawn_amount_total",
			Help:      "Unemitted amount clawed back by the owner.",
		}, []string{"engine", "denom"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		heights: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "block_height",
			Help:      "Height of the last block an operation ran at.",
		}),
	}
	reg.MustRegister(m.events, m.funded, m.claimed, m.withdrawn, m.latency, m.heights)
	return m
}

// amountKeys maps event types to the attribute holding the moved amount and
// the counter it feeds.
var amountKeys = map[string]struct {
	attr string
	kind string
}{
	"rewards.distribution.funded": {attr: "amountFunded", kind: "funded"},
	"rewards.claimed":             {attr: "amountClaimed", kind: "claimed"},
	"rewards.withdrawn":           {attr: "amountWithdrawn", kind: "withdrawn"},
	"stakerewards.funded":         {attr: "amount", kind: "funded"},
	"stakerewards.claimed":        {attr: "amount", kind: "claimed"},
}

// RecordEvent counts evt and, for value moving events, adds its amount.
func (m *RewardsMetrics) RecordEvent(evt *types.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.Type).Inc()
	spec, ok := amountKeys[evt.Type]
	if !ok {
		return
	}
	amount, ok := new(big.Float).SetString(evt.Attr(spec.attr))
	if !ok {
		return
	}
	value, _ := amount.Float64()
	engine, _, _ := strings.Cut(evt.Type, ".")
	denom := evt.Attr("denom")
	if denom == "" {
		denom = "default"
	}
	switch spec.kind {
	case "funded":
		m.funded.WithLabelValues(engine, denom).Add(value)
	case "claimed":
		m.claimed.WithLabelValues(engine, denom).Add(value)
	case "withdrawn":
		m.withdrawn.WithLabelValues(engine, denom).Add(value)
	}
}

// ObserveOperation records the latency of a single engine call.
func (m *RewardsMetrics) ObserveOperation(operation string, height uint64, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.latency.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
	m.heights.Set(float64(height))
}

// Emitter returns an events.Emitter feeding every event into m.
func (m *RewardsMetrics) Emitter() events.Emitter {
	return eventBridge{metrics: m}
}

type eventBridge struct {
	metrics *RewardsMetrics
}

func (b eventBridge) Emit(evt events.Event) {
	if payload := events.Unwrap(evt); payload != nil {
		b.metrics.RecordEvent(payload)
		return
	}
	b.metrics.RecordEvent(&types.Event{Type: evt.EventType()})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the supplied gatherer.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
