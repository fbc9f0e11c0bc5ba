package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/handlers/calendar"
)

// Job is a maintenance task repeated at a fixed interval.
type Job struct {
	Name       string
	Every      time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Runner drives jobs until its context ends. A failing run is logged and
// retried on the next tick.
type Runner struct {
	jobs   []Job
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{jobs: jobs, logger: logger}
}

func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		if job.Every <= 0 || job.Run == nil {
			r.logger.Info("scheduled job disabled", "job", job.Name)
			continue
		}
		g.Go(func() error {
			r.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()
	if job.RunOnStart {
		r.runOnce(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	switch {
	case err == nil:
		r.logger.DebugContext(ctx, "scheduled job finished", "job", job.Name, "duration", time.Since(start))
	case errors.Is(err, context.Canceled):
	default:
		r.logger.ErrorContext(ctx, "scheduled job failed", "job", job.Name, "error", err)
	}
}

// Intervals configures the calendar maintenance jobs. A zero interval turns
// the job off.
type Intervals struct {
	Sweep       time.Duration
	Generate    time.Duration
	Reconcile   time.Duration
	MonthsAhead int
}

// CalendarJobs dispatches the hold sweep, the catalog-wide generator run and
// reconciliation through the command bus, so they share its middleware.
func CalendarJobs(bus commands.Bus, iv Intervals) []Job {
	return []Job{
		{
			Name:  "sweep-expired-holds",
			Every: iv.Sweep,
			Run: func(ctx context.Context) error {
				_, err := commands.Dispatch[calendar.SweepHoldsCommand, *dto.Sweep](ctx, bus, calendar.SweepHoldsCommand{})
				return err
			},
		},
		{
			Name:       "generate-calendars",
			Every:      iv.Generate,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := commands.Dispatch[calendar.GenerateCalendarCommand, *calendar.GenerateCalendarResult](ctx, bus, calendar.GenerateCalendarCommand{MonthsAhead: iv.MonthsAhead})
				return err
			},
		},
		{
			Name:  "reconcile-calendars",
			Every: iv.Reconcile,
			Run: func(ctx context.Context) error {
				_, err := commands.Dispatch[calendar.ReconcileCommand, *calendar.ReconcileResult](ctx, bus, calendar.ReconcileCommand{MonthsAhead: iv.MonthsAhead})
				return err
			},
		},
	}
}
