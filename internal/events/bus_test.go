package events

import (
	"context"
	"testing"
	"time"

	"finviz/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FansOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	require.NoError(t, bus.Notify(context.Background(), core.NewInvalidation(core.OpCreated, "x")))

	for _, ch := range []<-chan core.Invalidation{a, b} {
		select {
		case inv := <-ch:
			assert.Equal(t, core.OpCreated, inv.Op)
			assert.Equal(t, "x", inv.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive invalidation")
		}
	}
}

func TestBus_CoalescesWhilePending(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Notify(ctx, core.NewInvalidation(core.OpUpdated, "y")))
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected pending signals to be coalesced")
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, bus.Subscribers())
	assert.NoError(t, bus.Notify(context.Background(), core.NewInvalidation(core.OpDeleted, "z")))
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	bus.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscriptions after Close are closed immediately")
}
