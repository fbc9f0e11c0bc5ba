package availability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultHoldTTL        = 30 * time.Minute
	defaultMirrorAttempts = 3
	defaultSweepBatch     = 100
	defaultMonthsAhead    = 12
)

var defaultBackoff = []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}

// Metrics receives engine counters. The prometheus adapter lives in infra/obs.
type Metrics interface {
	HoldPlaced()
	HoldConflict()
	HoldsReleased(cause string, n int)
	ConsistencyWarning()
	PartialWrite(kind string)
	GenerationErrors(n int)
	DriftRepaired(n int)
}

// ReportArchive keeps generation reports for later inspection.
type ReportArchive interface {
	StoreReport(ctx context.Context, report GenerationReport) error
}

type options struct {
	logger         *slog.Logger
	now            func() time.Time
	metrics        Metrics
	archive        ReportArchive
	holdTTL        time.Duration
	backoff        []time.Duration
	mirrorAttempts int
	sweepBatch     int
	sweepLimiter   *rate.Limiter
	monthsAhead    int
}

// Option configures a Coordinator.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithReportArchive(a ReportArchive) Option {
	return func(o *options) { o.archive = a }
}

// WithHoldTTL sets how long a checkout hold lives before the sweep reclaims it.
func WithHoldTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.holdTTL = ttl
		}
	}
}

// WithRetryBackoff sets the waits between retries of transient store errors.
// An empty list disables retries.
func WithRetryBackoff(backoff []time.Duration) Option {
	return func(o *options) { o.backoff = backoff }
}

func WithMirrorAttempts(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.mirrorAttempts = n
		}
	}
}

// WithSweep sets the batch size of a sweep run and paces its releases.
func WithSweep(batch int, limiter *rate.Limiter) Option {
	return func(o *options) {
		if batch > 0 {
			o.sweepBatch = batch
		}
		o.sweepLimiter = limiter
	}
}

func WithMonthsAhead(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.monthsAhead = n
		}
	}
}

func defaultOptions() options {
	return options{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:            time.Now,
		metrics:        nopMetrics{},
		holdTTL:        defaultHoldTTL,
		backoff:        defaultBackoff,
		mirrorAttempts: defaultMirrorAttempts,
		sweepBatch:     defaultSweepBatch,
		sweepLimiter:   rate.NewLimiter(rate.Inf, 1),
		monthsAhead:    defaultMonthsAhead,
	}
}

type nopMetrics struct{}

func (nopMetrics) HoldPlaced()               {}
func (nopMetrics) HoldConflict()             {}
func (nopMetrics) HoldsReleased(string, int) {}
func (nopMetrics) ConsistencyWarning()       {}
func (nopMetrics) PartialWrite(string)       {}
func (nopMetrics) GenerationErrors(int)      {}
func (nopMetrics) DriftRepaired(int)         {}
