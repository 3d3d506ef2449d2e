package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DreamEventType names the mutation that produced an event.
type DreamEventType string

const (
	DreamCreated DreamEventType = "created"
	DreamUpdated DreamEventType = "updated"
	DreamDeleted DreamEventType = "deleted"
)

// DreamEventChannelPrefix is the Redis Pub/Sub channel prefix; the owner id follows it.
const DreamEventChannelPrefix = "dreams:owner:"

// DreamEvent tells an owner's open clients that their listing is stale.
type DreamEvent struct {
	Type      DreamEventType `json:"type"`
	DreamID   string         `json:"dream_id"`
	OwnerID   string         `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventPublisher delivers dream events. Publish failures never fail a mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event DreamEvent) error
}

// RedisEventBus fans dream events out over Redis Pub/Sub, one channel per owner.
type RedisEventBus struct {
	client redis.UniversalClient
}

func NewRedisEventBus(client redis.UniversalClient) *RedisEventBus {
	return &RedisEventBus{client: client}
}

func dreamEventChannel(ownerID string) string {
	return DreamEventChannelPrefix + ownerID
}

// Publish sends event on the owner's channel.
func (b *RedisEventBus) Publish(ctx context.Context, event DreamEvent) error {
	if event.OwnerID == "" {
		return fmt.Errorf("dream event without owner")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, dreamEventChannel(event.OwnerID), data).Err()
}

// Subscribe listens on ownerID's channel until ctx is done or the returned
// close function is called. The subscription is confirmed before it returns.
func (b *RedisEventBus) Subscribe(ctx context.Context, ownerID string) (<-chan DreamEvent, func() error, error) {
	pubsub := b.client.Subscribe(ctx, dreamEventChannel(ownerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan DreamEvent, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event DreamEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("failed to unmarshal dream event: %v", err)
				continue
			}
			event.OwnerID = ownerID
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, pubsub.Close, nil
}
