package batch

import (
	"context"
	"time"
)

// EventType identifies a stage in the life of a batch item.
type EventType string

const (
	EventStarted        EventType = "started"
	EventSucceeded      EventType = "succeeded"
	EventSkipped        EventType = "skipped"
	EventUnsupported    EventType = "unsupported"
	EventFailed         EventType = "failed"
	EventCleanupWarning EventType = "cleanup_warning"
)

// Event is emitted to observers while a batch runs.
type Event struct {
	Type    EventType
	BatchID string
	// Index is the position of the item in the batch.
	Index      int
	SourceID   string
	SourceType string
	TargetType string
	Hops       int
	// FileID is the transient file that could not be deleted, for cleanup warnings.
	FileID   string
	Duration time.Duration
	Err      error
	At       time.Time
}

// Observer receives batch events. Implementations must not block for long:
// events are delivered synchronously on the conversion path.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) {
	f(ctx, e)
}
