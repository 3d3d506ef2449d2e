package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventBus_DeliversToOwnerOnly(t *testing.T) {
	_, client := newTestRedis(t)
	bus := NewRedisEventBus(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, closeSub, err := bus.Subscribe(ctx, ownerA.UserID)
	require.NoError(t, err)
	defer closeSub()

	require.NoError(t, bus.Publish(ctx, DreamEvent{Type: DreamCreated, DreamID: "other", OwnerID: ownerB.UserID}))
	require.NoError(t, bus.Publish(ctx, DreamEvent{Type: DreamDeleted, DreamID: "d1", OwnerID: ownerA.UserID}))

	select {
	case event := <-events:
		assert.Equal(t, DreamDeleted, event.Type)
		assert.Equal(t, "d1", event.DreamID)
		assert.Equal(t, ownerA.UserID, event.OwnerID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestRedisEventBus_RejectsOwnerlessEvent(t *testing.T) {
	_, client := newTestRedis(t)
	bus := NewRedisEventBus(client)

	assert.Error(t, bus.Publish(context.Background(), DreamEvent{Type: DreamCreated}))
}

func TestDreamService_PublishesOverRedis(t *testing.T) {
	_, client := newTestRedis(t)
	bus := NewRedisEventBus(client)
	svc := NewDreamService(NewMemoryDreamStore(), WithEventPublisher(bus))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, closeSub, err := bus.Subscribe(ctx, ownerA.UserID)
	require.NoError(t, err)
	defer closeSub()

	dream, err := svc.Create(ctx, ownerA, validInput())
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, DreamCreated, event.Type)
		assert.Equal(t, dream.ID.Hex(), event.DreamID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
