// Package events publishes task lifecycle notifications to a message
// broker. Publishing is best effort: failures are logged by callers and
// never surfaced to API clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tasktrac/apiserver/types"
)

// Channel is the broker channel (queue or topic) task events go to.
const Channel = "task-events"

// Event kinds.
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

// TaskEvent is the JSON payload published for a task lifecycle change.
type TaskEvent struct {
	Kind       string      `json:"kind"`
	TaskID     string      `json:"taskId"`
	UserID     string      `json:"userId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Task       *types.Task `json:"task,omitempty"`
}

// Backend defines the broker-agnostic publish operations.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend with a task-event API.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// PublishTaskEvent serializes and publishes a task lifecycle event.
func (p *Publisher) PublishTaskEvent(ctx context.Context, event TaskEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, Channel, data, map[string]string{"kind": event.Kind})
	return err
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

// NoopBackend discards events. Used when no broker is configured.
type NoopBackend struct{}

func (NoopBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (NoopBackend) Close() error { return nil }
