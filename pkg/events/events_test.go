package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

type collected struct{ types []string }

func (c *collected) Publish(_ context.Context, evt Event) error {
	c.types = append(c.types, evt.Type)
	return nil
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &collected{}, &collected{}
	boom := errors.New("broker down")

	err := Fanout{a, failing{boom}, b}.Publish(context.Background(), NewEvent(OrderCreated, "order-1", nil))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{OrderCreated}, a.types)
	assert.Equal(t, []string{OrderCreated}, b.types)
}

func TestFanoutWithoutErrors(t *testing.T) {
	err := Fanout{Noop{}, &collected{}}.Publish(context.Background(), NewEvent(ContactSubmitted, "contact-1", nil))
	assert.NoError(t, err)
}

func TestKafkaMessage(t *testing.T) {
	evt := NewEvent(OrderStatusChanged, "order-42", map[string]string{"status": "processing"})

	msg, err := kafkaMessage(evt)
	require.NoError(t, err)

	assert.Equal(t, "order-42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, OrderStatusChanged, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, OrderStatusChanged, decoded["type"])
	assert.Equal(t, "processing", decoded["payload"].(map[string]interface{})["status"])
}
