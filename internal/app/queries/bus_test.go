package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monthQuery struct{ month string }

func (monthQuery) Key() string { return "test.month" }

type healthQuery struct{}

func (healthQuery) Key() string { return "test.health" }

func TestAskRoutesByKey(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, monthQuery{}.Key(), HandlerFunc[monthQuery, string](func(_ context.Context, q monthQuery) (string, error) {
		return "calendar " + q.month, nil
	}))

	got, err := Ask[monthQuery, string](context.Background(), bus, monthQuery{month: "2026-06"})
	require.NoError(t, err)
	assert.Equal(t, "calendar 2026-06", got)

	_, err = Ask[monthQuery, int](context.Background(), bus, monthQuery{month: "2026-06"})
	assert.ErrorIs(t, err, ErrResultType)

	_, err = Ask[healthQuery, string](context.Background(), bus, healthQuery{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	assert.Panics(t, func() {
		RegisterHandler(bus, monthQuery{}.Key(), HandlerFunc[monthQuery, string](func(context.Context, monthQuery) (string, error) { return "", nil }))
	})
}
