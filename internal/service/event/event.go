package event

import (
	"context"
)

// Emitter is the part of Service workflows depend on.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}
