package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalspot/internal/domain/shared/daterange"
)

func TestTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r, err := daterange.Parse("2025-06-04", "2025-06-07")
	require.NoError(t, err)

	b := NewHold("booking-1", "chalet-1", r, 30*time.Minute, now)
	assert.Equal(t, StatusOnHold, b.Status)
	assert.True(t, b.Internal())
	assert.True(t, b.Active())
	assert.False(t, b.HoldExpired(now))
	assert.True(t, b.HoldExpired(now.Add(30*time.Minute)))

	require.NoError(t, b.Apply(StatusConfirmed, now))
	assert.False(t, b.HoldExpired(now.Add(time.Hour)))
	assert.ErrorIs(t, b.Apply(StatusExpired, now), ErrInvalidState)
	require.NoError(t, b.Apply(StatusCancelled, now))
	assert.False(t, b.Active())
	assert.ErrorIs(t, b.Apply(StatusConfirmed, now), ErrInvalidState)
}

func TestValidateDateRange(t *testing.T) {
	now := time.Date(2025, 6, 5, 23, 0, 0, 0, time.UTC)
	past, _ := daterange.Parse("2025-06-04", "2025-06-07")
	today, _ := daterange.Parse("2025-06-05", "2025-06-07")

	assert.ErrorIs(t, ValidateDateRange(past, now), ErrCheckInInPast)
	assert.NoError(t, ValidateDateRange(today, now))
}
