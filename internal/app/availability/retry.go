package availability

import (
	"context"
	"log/slog"
	"time"

	domain "rentalspot/internal/domain/availability"
)

// retry runs fn until it succeeds, fails with a non-transient error or the
// backoff list is exhausted.
func retry(ctx context.Context, logger *slog.Logger, op string, backoff []time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsRetryable(err) || attempt >= len(backoff) {
			return err
		}
		logger.WarnContext(ctx, "retrying store operation",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		timer := time.NewTimer(backoff[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
