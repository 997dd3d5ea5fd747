package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel carrying invalidations.
const Channel = "access.invalidate"

// Bus publishes and receives invalidations over Redis pub/sub.
type Bus struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewBus constructs a Bus on Channel.
func NewBus(client redis.UniversalClient, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, channel: Channel, logger: logger}
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, inv Invalidation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("checks: publish: %w", err)
	}
	return nil
}

// Subscribe calls fn for every invalidation until ctx is done. It returns
// once the subscription fails or ctx ends.
func (b *Bus) Subscribe(ctx context.Context, fn func(Invalidation)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		_ = sub.Close()
	}()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("checks: subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv Invalidation
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				b.logger.Warn("discarding malformed invalidation", slog.Any("error", err))
				continue
			}
			fn(inv)
		}
	}
}
