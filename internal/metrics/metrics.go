package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "numbrly"

// Metrics holds the portal's prometheus collectors. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	lifecycleEvents   *prometheus.CounterVec
	ledgerMovements   *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	compensations     *prometheus.CounterVec
	refundsPending    prometheus.Counter
	reaperReleased    prometheus.Counter
	reaperSweeps      prometheus.Histogram
	notificationsSent *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		lifecycleEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Number and balance lifecycle transitions by event name",
		}, []string{"event"}),
		ledgerMovements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "movements_total",
			Help:      "Ledger debits and credits by type and reason",
		}, []string{"type", "reason"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected hold and purchase attempts by error code",
		}, []string{"operation", "code"}),
		compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "compensations_total",
			Help:      "Rollback credits after a lost assignment race by outcome",
		}, []string{"outcome"}),
		refundsPending: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refund",
			Name:      "pending_total",
			Help:      "Refunds queued for retry after the inline credit gave up",
		}),
		reaperReleased: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "released_total",
			Help:      "Expired holds released by the reaper",
		}),
		reaperSweeps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reaper sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
		notificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Lifecycle notification deliveries by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves this instance's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordLifecycle(event string) {
	m.lifecycleEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordLedgerMovement(txType, reason string) {
	m.ledgerMovements.WithLabelValues(txType, reason).Inc()
}

func (m *Metrics) RecordRejection(operation, code string) {
	m.rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) RecordCompensation(outcome string) {
	m.compensations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRefundPending() {
	m.refundsPending.Inc()
}

func (m *Metrics) RecordReaperSweep(released int, took time.Duration) {
	m.reaperReleased.Add(float64(released))
	m.reaperSweeps.Observe(took.Seconds())
}

func (m *Metrics) RecordNotification(outcome string) {
	m.notificationsSent.WithLabelValues(outcome).Inc()
}
