package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalspot/internal/app/commands"
	"rentalspot/internal/app/middleware"
)

func TestIdempotencyKeepsFirstResultWithCommand(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k-1", Command: "calendar.place_hold", Payload: []byte(`1`)}))
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k-1", Command: "calendar.cancel_booking", Payload: []byte(`2`)}))

	rec, found, err := store.Get(ctx, "k-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "calendar.place_hold", rec.Command)
	assert.Equal(t, []byte(`1`), rec.Payload)
}

func TestIdempotencyRecordsExpire(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Hour)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k-1", Command: "calendar.place_hold"}))
	now = now.Add(time.Hour)
	_, found, err := store.Get(ctx, "k-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k-1", Command: "calendar.confirm_booking"}))
	rec, found, err := store.Get(ctx, "k-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "calendar.confirm_booking", rec.Command)
}

type holdCommand struct{ key string }

func (c holdCommand) Key() string            { return "test.hold" }
func (c holdCommand) IdempotencyKey() string { return c.key }
func (c holdCommand) ResultPrototype() any   { return &holdReply{} }

type cancelCommand struct{ key string }

func (c cancelCommand) Key() string            { return "test.cancel" }
func (c cancelCommand) IdempotencyKey() string { return c.key }
func (c cancelCommand) ResultPrototype() any   { return &holdReply{} }

type holdReply struct {
	Calls int `json:"calls"`
}

func TestIdempotencyStoreRejectsKeyOfOtherCommand(t *testing.T) {
	calls := 0
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, holdCommand{}.Key(), commands.HandlerFunc[holdCommand, *holdReply](func(ctx context.Context, cmd holdCommand) (*holdReply, error) {
		calls++
		return &holdReply{Calls: calls}, nil
	}))
	commands.RegisterHandler(base, cancelCommand{}.Key(), commands.HandlerFunc[cancelCommand, *holdReply](func(ctx context.Context, cmd cancelCommand) (*holdReply, error) {
		return &holdReply{}, nil
	}))
	bus := middleware.ChainCommands(base, middleware.Idempotency(NewIdempotencyStore(0), nil))
	ctx := context.Background()

	first, err := commands.Dispatch[holdCommand, *holdReply](ctx, bus, holdCommand{key: "k-1"})
	require.NoError(t, err)
	again, err := commands.Dispatch[holdCommand, *holdReply](ctx, bus, holdCommand{key: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, first.Calls, again.Calls)
	assert.Equal(t, 1, calls)

	_, err = commands.Dispatch[cancelCommand, *holdReply](ctx, bus, cancelCommand{key: "k-1"})
	assert.ErrorIs(t, err, middleware.ErrIdempotencyKeyReused)
}
