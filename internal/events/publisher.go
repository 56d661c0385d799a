// Package events publishes domain events to Kafka or the log
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/config"
)

// Event types
const (
	UserRegistered       = "user.registered"
	UserStatusChanged    = "user.status_changed"
	UserDeleted          = "user.deleted"
	ProjectCreated       = "project.created"
	ProjectStatusChanged = "project.status_changed"
	ProjectDeleted       = "project.deleted"
	ContributionRecorded = "project.contribution_recorded"
)

// Event is the envelope written to the bus
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	Subject    string         `json:"subject"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an id and time on a new event. Subject is the partition key
// and names the aggregate, e.g. "project:42".
func NewEvent(eventType, subject string, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher defines the interface for event publishers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewPublisher picks Kafka when brokers are configured and logging otherwise.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// KafkaPublisher writes events to a single topic keyed by subject
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

func toMessage(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Subject),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID.String())},
		},
	}, nil
}

// LogPublisher logs events; used when no broker is configured
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (l *LogPublisher) Publish(_ context.Context, event Event) error {
	l.logger.Info("event",
		zap.String("type", event.Type),
		zap.String("subject", event.Subject),
		zap.String("id", event.ID.String()),
		zap.Any("data", event.Data))
	return nil
}

func (l *LogPublisher) Close() error { return nil }

// MemoryPublisher records events in order
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Types returns the recorded event types in publish order.
func (m *MemoryPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// Events returns a copy of the recorded events.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Emitter publishes on behalf of services and only logs failures; events
// are notifications, not part of the write.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewEmitter(publisher Publisher, logger *zap.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, eventType, subject string, data map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}
	event := NewEvent(eventType, subject, data)
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("subject", subject),
			zap.Error(err))
	}
}
