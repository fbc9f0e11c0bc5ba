package calendar

import (
	"context"
	"time"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/domain/shared/daterange"
)

const externalBlockKey = "calendar.external_block"

// ExternalBlockCommand closes (Blocked) or reopens nights booked on another
// channel. An empty Source on reopen clears every channel's block.
type ExternalBlockCommand struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Source     string
	Blocked    bool
}

func (c ExternalBlockCommand) Key() string { return externalBlockKey }

func (c ExternalBlockCommand) Validate() error {
	if err := required("propertyId", c.PropertyID); err != nil {
		return err
	}
	if c.Blocked {
		return required("source", c.Source)
	}
	return nil
}

type ExternalBlockHandler struct {
	Engine Engine
	Publisher
}

func (h *ExternalBlockHandler) Handle(ctx context.Context, cmd ExternalBlockCommand) (*dto.BlockChange, error) {
	r, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	var res availability.BlockResult
	if cmd.Blocked {
		res, err = h.Engine.ApplyExternalBlock(ctx, cmd.PropertyID, r, cmd.Source)
	} else {
		res, err = h.Engine.ClearExternalBlock(ctx, cmd.PropertyID, r, cmd.Source)
	}
	if err := h.finish(ctx, res.Events, err); err != nil {
		return nil, err
	}
	change := dto.MapBlockChange(res, cmd.Blocked)
	return &change, nil
}

var _ commands.Handler[ExternalBlockCommand, *dto.BlockChange] = (*ExternalBlockHandler)(nil)
