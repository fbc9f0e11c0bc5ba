package calendar

import (
	"context"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/domain/shared/events"
)

const (
	generateCalendarKey = "calendar.generate"
	sweepHoldsKey       = "calendar.sweep_holds"
	reconcileKey        = "calendar.reconcile"
)

// GenerateCalendarCommand rebuilds price calendars. An empty PropertyID
// covers the whole catalog.
type GenerateCalendarCommand struct {
	PropertyID  string
	MonthsAhead int
}

func (c GenerateCalendarCommand) Key() string { return generateCalendarKey }

type GenerateCalendarResult struct {
	Reports []dto.GenerationReport `json:"reports"`
}

type GenerateCalendarHandler struct {
	Engine Engine
	Publisher
}

func (h *GenerateCalendarHandler) Handle(ctx context.Context, cmd GenerateCalendarCommand) (*GenerateCalendarResult, error) {
	var (
		reports []availability.GenerationReport
		err     error
	)
	if cmd.PropertyID == "" {
		reports, err = h.Engine.GenerateAll(ctx, cmd.MonthsAhead)
	} else {
		var report availability.GenerationReport
		report, err = h.Engine.Generate(ctx, cmd.PropertyID, cmd.MonthsAhead)
		if err == nil {
			reports = append(reports, report)
		}
	}
	var evs []events.DomainEvent
	for _, r := range reports {
		evs = append(evs, r.Events...)
	}
	if err := h.finish(ctx, evs, err); err != nil {
		return nil, err
	}
	return &GenerateCalendarResult{Reports: dto.MapGenerationReports(reports)}, nil
}

type SweepHoldsCommand struct{}

func (SweepHoldsCommand) Key() string { return sweepHoldsKey }

type SweepHoldsHandler struct {
	Engine Engine
	Publisher
}

func (h *SweepHoldsHandler) Handle(ctx context.Context, _ SweepHoldsCommand) (*dto.Sweep, error) {
	res, err := h.Engine.SweepExpiredHolds(ctx)
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	sweep := dto.MapSweep(res)
	return &sweep, nil
}

// ReconcileCommand repairs drift between the ledger and the price calendar.
// An empty PropertyID covers the whole catalog.
type ReconcileCommand struct {
	PropertyID  string
	MonthsAhead int
}

func (c ReconcileCommand) Key() string { return reconcileKey }

type ReconcileResult struct {
	Reports []dto.Reconciliation `json:"reports"`
}

type ReconcileHandler struct {
	Engine Engine
	Publisher
}

func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (*ReconcileResult, error) {
	var (
		reports []availability.ReconcileReport
		err     error
	)
	if cmd.PropertyID == "" {
		reports, err = h.Engine.ReconcileAll(ctx, cmd.MonthsAhead)
	} else {
		var report availability.ReconcileReport
		report, err = h.Engine.Reconcile(ctx, cmd.PropertyID, cmd.MonthsAhead)
		reports = append(reports, report)
	}
	var evs []events.DomainEvent
	for _, r := range reports {
		evs = append(evs, r.Events...)
	}
	if err := h.finish(ctx, evs, err); err != nil {
		return nil, err
	}
	return &ReconcileResult{Reports: dto.MapReconciliations(reports)}, nil
}

var (
	_ commands.Handler[GenerateCalendarCommand, *GenerateCalendarResult] = (*GenerateCalendarHandler)(nil)
	_ commands.Handler[SweepHoldsCommand, *dto.Sweep]                    = (*SweepHoldsHandler)(nil)
	_ commands.Handler[ReconcileCommand, *ReconcileResult]               = (*ReconcileHandler)(nil)
)
