package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/config"
)

func TestToMessage(t *testing.T) {
	event := NewEvent(ProjectStatusChanged, "project:42", map[string]any{"from": "draft", "to": "submitted"})

	msg, err := toMessage(event)
	require.NoError(t, err)
	assert.Equal(t, "project:42", string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, ProjectStatusChanged, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "submitted", decoded.Data["to"])
}

func TestNewPublisherSelectsBackend(t *testing.T) {
	_, ok := NewPublisher(config.KafkaConfig{}, zap.NewNop()).(*LogPublisher)
	assert.True(t, ok)

	p := NewPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, zap.NewNop())
	_, ok = p.(*KafkaPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}

type failingPublisher struct{ MemoryPublisher }

func (f *failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }

func TestEmitterSwallowsFailures(t *testing.T) {
	mem := &MemoryPublisher{}
	NewEmitter(mem, zap.NewNop()).Emit(context.Background(), UserRegistered, "user:1", nil)
	assert.Equal(t, []string{UserRegistered}, mem.Types())

	assert.NotPanics(t, func() {
		NewEmitter(&failingPublisher{}, zap.NewNop()).Emit(context.Background(), UserRegistered, "user:1", nil)
	})

	var nilEmitter *Emitter
	assert.NotPanics(t, func() { nilEmitter.Emit(context.Background(), UserRegistered, "user:1", nil) })
}
