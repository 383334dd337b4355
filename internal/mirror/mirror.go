// Package mirror emits task-changed events toward an external calendar
// integration. Delivery is fire-and-forget: core correctness never depends on
// an event arriving.
package mirror

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskpilot/internal/model"
)

type EventType string

const (
	EventTaskCreated  EventType = "task_created"
	EventTaskChanged  EventType = "task_changed"
	EventTaskDeleted  EventType = "task_deleted"
	EventTaskRestored EventType = "task_restored"
)

// Event carries the fields the calendar side mirrors.
type Event struct {
	ID         string       `json:"id"`
	Type       EventType    `json:"type"`
	PublicID   string       `json:"public_id"`
	Content    string       `json:"content"`
	Status     model.Status `json:"status"`
	Deadline   *time.Time   `json:"deadline,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Sink is the far side of the mirror integration.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// LogSink writes events to the log; it stands in when no calendar
// integration is configured.
type LogSink struct {
	Log *logrus.Entry
}

func (s *LogSink) Publish(_ context.Context, event Event) error {
	s.Log.WithFields(logrus.Fields{
		"event":     event.Type,
		"public_id": event.PublicID,
		"status":    event.Status,
	}).Debug("mirror event")
	return nil
}

// Emitter decouples the engine from the sink through a buffered channel.
// When the buffer is full the event is dropped with a warning; the contract
// is best-effort.
type Emitter struct {
	sink   Sink
	events chan Event
	done   chan struct{}
	log    *logrus.Entry
}

func NewEmitter(sink Sink, buffer int, log *logrus.Entry) *Emitter {
	if buffer < 1 {
		buffer = 64
	}
	e := &Emitter{
		sink:   sink,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		log:    log,
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.events {
		if err := e.sink.Publish(context.Background(), event); err != nil {
			e.log.WithError(err).WithField("public_id", event.PublicID).Warn("mirror publish failed")
		}
	}
}

// Emit queues one event for the sink without blocking the caller.
func (e *Emitter) Emit(eventType EventType, task *model.Task) {
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		PublicID:   task.PublicID,
		Content:    task.Content,
		Status:     task.Status,
		Deadline:   task.Deadline,
		OccurredAt: time.Now(),
	}
	select {
	case e.events <- event:
	default:
		e.log.WithField("public_id", event.PublicID).Warn("mirror buffer full, event dropped")
	}
}

// Close flushes queued events and stops the emitter.
func (e *Emitter) Close() {
	close(e.events)
	<-e.done
}
