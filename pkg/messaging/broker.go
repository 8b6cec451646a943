package messaging

import (
	"context"
)

// Broker publishes events to named channels.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Handler processes one message received on channel.
type Handler func(ctx context.Context, channel string, payload []byte) error
