// Package observability provides event schemas, metrics, and tracing for
// meeting imports.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event channels for Redis pub/sub
const (
	ChannelMeetingImported = "events.krisp.meeting_imported"
	ChannelMeetingSkipped  = "events.krisp.meeting_skipped"
	ChannelImportError     = "events.krisp.import_error"
)

// MeetingImportedEvent is emitted after a note is written to the vault.
type MeetingImportedEvent struct {
	EventID      string    `json:"event_id"`
	TraceID      string    `json:"trace_id,omitempty"`
	Source       string    `json:"source"`
	Folder       string    `json:"folder"`
	Title        string    `json:"title"`
	Date         string    `json:"date,omitempty"`
	NotePath     string    `json:"note_path"`
	MeetingType  string    `json:"meeting_type"`
	Participants []string  `json:"participants"`
	Tags         []string  `json:"tags"`
	WordCount    int       `json:"word_count"`
	Truncated    bool      `json:"truncated,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewMeetingImportedEvent creates an imported event with a generated ID.
func NewMeetingImportedEvent(source, folder, title, notePath string) *MeetingImportedEvent {
	return &MeetingImportedEvent{
		EventID:   uuid.New().String(),
		Source:    source,
		Folder:    folder,
		Title:     title,
		NotePath:  notePath,
		Timestamp: time.Now(),
	}
}

// MeetingSkippedEvent is emitted when a duplicate note is left untouched.
type MeetingSkippedEvent struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Folder    string    `json:"folder"`
	NotePath  string    `json:"note_path"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMeetingSkippedEvent creates a skipped event with a generated ID.
func NewMeetingSkippedEvent(source, folder, notePath, reason string) *MeetingSkippedEvent {
	return &MeetingSkippedEvent{
		EventID:   uuid.New().String(),
		Source:    source,
		Folder:    folder,
		NotePath:  notePath,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ImportErrorEvent is emitted when an archive or meeting fails to import.
type ImportErrorEvent struct {
	EventID   string    `json:"event_id"`
	TraceID   string    `json:"trace_id,omitempty"`
	Source    string    `json:"source"`
	Folder    string    `json:"folder,omitempty"`
	Stage     string    `json:"stage"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// NewImportErrorEvent creates an error event with a generated ID.
func NewImportErrorEvent(source, folder, stage, code, message string, retryable bool) *ImportErrorEvent {
	return &ImportErrorEvent{
		EventID:   uuid.New().String(),
		Source:    source,
		Folder:    folder,
		Stage:     stage,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now(),
	}
}

// EventPublisher publishes events to named channels.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event interface{}) error
	Close() error
}

// RedisEventPublisher publishes JSON events with Redis PUBLISH.
type RedisEventPublisher struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisEventPublisher creates a publisher. prefix, when set, is prepended
// to every channel name as "<prefix>.".
func NewRedisEventPublisher(client redis.UniversalClient, prefix string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, prefix: prefix}
}

// Channel returns the full channel name for a base channel.
func (p *RedisEventPublisher) Channel(base string) string {
	if p.prefix == "" {
		return base
	}
	return p.prefix + "." + base
}

// Publish publishes an event to a Redis channel.
func (p *RedisEventPublisher) Publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(channel), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.Channel(channel), err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisEventPublisher) Close() error {
	return nil
}

// NoOpEventPublisher discards all events.
type NoOpEventPublisher struct{}

// Publish does nothing.
func (p *NoOpEventPublisher) Publish(ctx context.Context, channel string, event interface{}) error {
	return nil
}

// Close does nothing.
func (p *NoOpEventPublisher) Close() error {
	return nil
}

// EventEmitter provides a convenient interface for emitting import events.
type EventEmitter struct {
	publisher EventPublisher
}

// NewEventEmitter creates a new event emitter. A nil publisher discards.
func NewEventEmitter(publisher EventPublisher) *EventEmitter {
	if publisher == nil {
		publisher = &NoOpEventPublisher{}
	}
	return &EventEmitter{publisher: publisher}
}

// EmitImported emits a meeting imported event.
func (e *EventEmitter) EmitImported(ctx context.Context, event *MeetingImportedEvent) error {
	event.TraceID = GetTraceID(ctx)
	return e.publisher.Publish(ctx, ChannelMeetingImported, event)
}

// EmitSkipped emits a meeting skipped event.
func (e *EventEmitter) EmitSkipped(ctx context.Context, event *MeetingSkippedEvent) error {
	return e.publisher.Publish(ctx, ChannelMeetingSkipped, event)
}

// EmitError emits an import error event.
func (e *EventEmitter) EmitError(ctx context.Context, event *ImportErrorEvent) error {
	event.TraceID = GetTraceID(ctx)
	return e.publisher.Publish(ctx, ChannelImportError, event)
}

// Close closes the underlying publisher.
func (e *EventEmitter) Close() error {
	return e.publisher.Close()
}
