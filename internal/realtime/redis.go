package realtime

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "medbuddy:events:"

// RedisBus is a Bus backed by Redis pub/sub so change events reach every
// server instance, not just the one that performed the write.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to Redis and verifies the connection
func NewRedisBus(addr string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &RedisBus{client: client}, nil
}

// Publish marshals the event and publishes it on the user's channel
func (b *RedisBus) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal realtime event: %v", err)
		return
	}

	if err := b.client.Publish(ctx, channelPrefix+event.UserID, payload).Err(); err != nil {
		log.Printf("Failed to publish realtime event for user %s: %v", event.UserID, err)
	}
}

// Subscribe attaches to the user's Redis channel and decodes events
func (b *RedisBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	pubsub := b.client.Subscribe(ctx, channelPrefix+userID)
	ch := make(chan Event, subscriberBuffer)

	go func() {
		defer close(ch)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Failed to decode realtime event: %v", err)
				continue
			}
			select {
			case ch <- event:
			default:
			}
		}
	}()

	cancel := func() {
		if err := pubsub.Close(); err != nil {
			log.Printf("Failed to close realtime subscription: %v", err)
		}
	}

	return ch, cancel
}

// Close releases the Redis connection
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// NewBusFromEnv returns a RedisBus when REDIS_ADDR is set and reachable,
// falling back to the in-process bus otherwise.
func NewBusFromEnv() Bus {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("REDIS_ADDR not set, using in-process realtime bus")
		return NewMemoryBus()
	}

	bus, err := NewRedisBus(addr)
	if err != nil {
		log.Printf("Failed to connect to Redis at %s, using in-process realtime bus: %v", addr, err)
		return NewMemoryBus()
	}

	log.Printf("Realtime bus backed by Redis at %s", addr)
	return bus
}
