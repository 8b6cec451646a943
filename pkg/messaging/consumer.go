package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/jwalitptl/clinic-workflow/pkg/logger"
)

// Consume subscribes handler to every channel and blocks until ctx is done.
// Handler errors are logged; the subscription keeps going.
func Consume(ctx context.Context, broker Broker, channels []string, handler Handler, log *logger.Logger) error {
	var wg sync.WaitGroup
	for _, channel := range channels {
		msgs, err := broker.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}

		wg.Add(1)
		go func(channel string, msgs <-chan []byte) {
			defer wg.Done()
			for msg := range msgs {
				if err := handler(ctx, channel, msg); err != nil {
					log.Error(err, "failed to handle message", "channel", channel)
				}
			}
		}(channel, msgs)
	}

	wg.Wait()
	return ctx.Err()
}
