package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalspot/internal/app/availability"
	"rentalspot/internal/app/middleware"
	domain "rentalspot/internal/domain/availability"
	domainbooking "rentalspot/internal/domain/booking"
	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
)

type errorBody struct {
	Error     string   `json:"error"`
	Dates     []string `json:"dates,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrStatusChanged),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, middleware.ErrIdempotencyKeyReused):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, property.ErrPropertyNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrConfiguration),
		errors.Is(err, pricing.ErrPricing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, availability.ErrInvalidRequest),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrInvalidDay),
		errors.Is(err, daterange.ErrInvalidMonth),
		errors.Is(err, domainbooking.ErrCheckInInPast):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPartialHold),
		errors.Is(err, domain.ErrPartialConsistency),
		errors.Is(err, domain.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps engine errors onto status codes. Unavailable nights
// travel with a conflict so clients can show them.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		body.Dates = conflict.Dates
	}
	if status == http.StatusServiceUnavailable {
		body.Retryable = domain.IsRetryable(err)
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "calendar request failed", "status", status, "error", err, "path", c.FullPath())
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}
