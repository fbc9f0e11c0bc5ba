package calendar

import (
	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/dto"
	"rentalspot/internal/app/queries"
)

// Register wires every calendar handler onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, engine Engine, pub Publisher) {
	queries.RegisterHandler[CheckAvailabilityQuery, dto.Quote](queryBus, checkAvailabilityKey, &CheckAvailabilityHandler{Engine: engine})
	queries.RegisterHandler[GetCalendarQuery, dto.MonthCalendar](queryBus, getCalendarKey, &GetCalendarHandler{Engine: engine})
	queries.RegisterHandler[HealthQuery, dto.Health](queryBus, healthKey, &HealthHandler{Engine: engine})

	commands.RegisterHandler[PlaceHoldCommand, *dto.Hold](cmdBus, placeHoldKey, &PlaceHoldHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[ConfirmBookingCommand, *dto.BookingChange](cmdBus, confirmBookingKey, &ConfirmBookingHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[CancelBookingCommand, *dto.BookingChange](cmdBus, cancelBookingKey, &CancelBookingHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[ReleaseHoldCommand, *dto.BookingChange](cmdBus, releaseHoldKey, &ReleaseHoldHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[ExternalBlockCommand, *dto.BlockChange](cmdBus, externalBlockKey, &ExternalBlockHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[GenerateCalendarCommand, *GenerateCalendarResult](cmdBus, generateCalendarKey, &GenerateCalendarHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[SweepHoldsCommand, *dto.Sweep](cmdBus, sweepHoldsKey, &SweepHoldsHandler{Engine: engine, Publisher: pub})
	commands.RegisterHandler[ReconcileCommand, *ReconcileResult](cmdBus, reconcileKey, &ReconcileHandler{Engine: engine, Publisher: pub})
}
