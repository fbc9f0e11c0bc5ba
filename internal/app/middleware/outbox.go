package middleware

import (
	"context"
	"log/slog"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/outbox"
)

// OutboxFlush flushes the outbox after every command, including failed ones:
// a partial calendar write still records events for the dates it changed.
// A flush error is logged and never replaces the command outcome, since the
// records are already stored and the worker picks them up on its next poll.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if ferr := box.Flush(context.WithoutCancel(ctx)); ferr != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", ferr)
			}
			return res, err
		})
	}
}
