package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentalspot"

// Metrics is the prometheus side of the calendar engine counters plus the
// HTTP request histogram. Each instance owns its registry so tests can build
// as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	holdsPlaced         prometheus.Counter
	holdConflicts       prometheus.Counter
	holdsReleased       *prometheus.CounterVec
	consistencyWarnings prometheus.Counter
	partialWrites       *prometheus.CounterVec
	generationErrors    prometheus.Counter
	driftRepaired       prometheus.Counter
	staleHolds          prometheus.Gauge
	storeReachable      prometheus.Gauge
	httpDuration        *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		holdsPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_placed_total",
			Help: "Checkout holds placed on the calendar.",
		}),
		holdConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hold_conflicts_total",
			Help: "Hold attempts rejected because a night was unavailable.",
		}),
		holdsReleased: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "holds_released_nights_total",
			Help: "Nights returned to the calendar by cause.",
		}, []string{"cause"}),
		consistencyWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "consistency_warnings_total",
			Help: "Quotes where the ledger and price calendar disagreed.",
		}),
		partialWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "partial_writes_total",
			Help: "Operations that left a partial write behind, by kind.",
		}, []string{"kind"}),
		generationErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "generation_day_errors_total",
			Help: "Days the calendar generator failed to price.",
		}),
		driftRepaired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "drift_repaired_days_total",
			Help: "Price calendar days realigned with the ledger.",
		}),
		staleHolds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "stale_holds",
			Help: "Holds past their TTL not yet swept, as of the last health check.",
		}),
		storeReachable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "availability_store_up",
			Help: "1 when the last health check reached the availability store.",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) HoldPlaced()         { m.holdsPlaced.Inc() }
func (m *Metrics) HoldConflict()       { m.holdConflicts.Inc() }
func (m *Metrics) ConsistencyWarning() { m.consistencyWarnings.Inc() }

func (m *Metrics) HoldsReleased(cause string, n int) {
	if n > 0 {
		m.holdsReleased.WithLabelValues(cause).Add(float64(n))
	}
}

func (m *Metrics) PartialWrite(kind string) { m.partialWrites.WithLabelValues(kind).Inc() }

func (m *Metrics) GenerationErrors(n int) {
	if n > 0 {
		m.generationErrors.Add(float64(n))
	}
}

func (m *Metrics) DriftRepaired(n int) {
	if n > 0 {
		m.driftRepaired.Add(float64(n))
	}
}

// ObserveHealth records the outcome of the latest health check.
func (m *Metrics) ObserveHealth(reachable bool, staleHolds int) {
	if reachable {
		m.storeReachable.Set(1)
	} else {
		m.storeReachable.Set(0)
	}
	m.staleHolds.Set(float64(staleHolds))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPMiddleware observes request latency keyed by the matched route.
func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
