package pricing

import (
	"errors"
	"fmt"
	"time"

	"rentalspot/internal/domain/shared/daterange"
)

var (
	ErrPricing       = errors.New("pricing: invalid resolved price")
	ErrConfiguration = errors.New("pricing: property configuration incomplete")
)

// PricingError reports a single day whose resolved price is unusable.
type PricingError struct {
	PropertyID string
	Date       time.Time
	Reason     string
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing: %s on %s: %s", e.PropertyID, daterange.FormatDay(e.Date), e.Reason)
}

func (e *PricingError) Is(target error) bool { return target == ErrPricing }

// ConfigurationError aborts a generation run for one property.
// Err, when set, says why Field is unusable rather than missing.
type ConfigurationError struct {
	PropertyID string
	Field      string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pricing: property %s: %s is invalid: %v", e.PropertyID, e.Field, e.Err)
	}
	return fmt.Sprintf("pricing: property %s: %s is not configured", e.PropertyID, e.Field)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
