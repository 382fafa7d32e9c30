package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ujenga-aus/JengaIQ-sub003/internal/circuitbreaker"
)

// ImportEventChannel is the Redis pub/sub channel carrying import
// status transitions.
const ImportEventChannel = "schedule:import_events"

// publishTimeout bounds a single publish so a slow Redis cannot stall
// the pipeline stage that triggered the transition.
const publishTimeout = 5 * time.Second

// RedisPublisher fans import status transitions out to Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on the shared Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends one transition to the event channel.
func (p *RedisPublisher) Publish(event TransitionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, ImportEventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

// Subscribe feeds transitions to handler until the context ends.
// Payloads that do not parse and handler errors are skipped; the feed
// is best-effort and import history in the database stays the source
// of truth.
func (p *RedisPublisher) Subscribe(ctx context.Context, handler func(TransitionEvent) error) error {
	sub := p.client.Subscribe(ctx, ImportEventChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var event TransitionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if err := handler(event); err != nil {
				continue
			}
		}
	}
}

// GuardedPublisher wraps a publisher with a circuit breaker so that a
// struggling event sink cannot slow down import processing. Events sent
// while the circuit is open are dropped; status history in the database
// remains the source of truth.
type GuardedPublisher struct {
	inner   EventPublisher
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedPublisher wraps the given publisher with a circuit breaker.
// A nil config uses the circuit breaker defaults.
func NewGuardedPublisher(inner EventPublisher, config *circuitbreaker.Config) *GuardedPublisher {
	return &GuardedPublisher{
		inner:   inner,
		breaker: circuitbreaker.New(config),
	}
}

// Publish publishes through the circuit breaker.
func (p *GuardedPublisher) Publish(event TransitionEvent) error {
	return p.breaker.Execute(context.Background(), func() error {
		return p.inner.Publish(event)
	})
}

// BreakerState returns the current circuit breaker state.
func (p *GuardedPublisher) BreakerState() circuitbreaker.State {
	return p.breaker.GetState()
}

// MultiPublisher fans one transition out to several publishers.
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher combines publishers into one. Order is preserved.
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish delivers to every publisher. A failing publisher never stops
// delivery to the rest.
func (p *MultiPublisher) Publish(event TransitionEvent) error {
	for _, publisher := range p.publishers {
		if err := publisher.Publish(event); err != nil {
			continue
		}
	}
	return nil
}
