package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	mock := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	}
	p := NewProducerWithWriter(mock, logging.NewNopLogger())

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic: TopicValuationCompleted,
		Key:   []byte("prop-1"),
		Value: []byte(`{"ok":true}`),
	})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, TopicValuationCompleted, captured[0].Topic)
	assert.Equal(t, []byte("prop-1"), captured[0].Key)

	sent, failed, _ := p.Metrics()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), failed)
}

func TestPublish_Validation(t *testing.T) {
	p := NewProducerWithWriter(&mockKafkaWriter{}, logging.NewNopLogger())

	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Value: []byte("v")}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t"}))
	assert.Error(t, p.Publish(context.Background(), &ProducerMessage{
		Topic: "t",
		Value: make([]byte, maxMessageBytes+1),
	}))
}

func TestPublish_WriteFailure(t *testing.T) {
	mock := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("broker unavailable")
		},
	}
	p := NewProducerWithWriter(mock, logging.NewNopLogger())

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.Error(t, err)

	_, failed, _ := p.Metrics()
	assert.Equal(t, int64(1), failed)
}

func TestPublish_AfterClose(t *testing.T) {
	p := NewProducerWithWriter(&mockKafkaWriter{}, logging.NewNopLogger())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestPublishEvent_EnvelopeRoundTrip(t *testing.T) {
	var captured []kafka.Message
	mock := &mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	}
	p := NewProducerWithWriter(mock, logging.NewNopLogger())

	payload := OverrideAppliedPayload{
		ComparableID: "cmp-1",
		Field:        "view",
		OldValue:     0.018,
		NewValue:     0.02,
		AppraiserID:  "appr-9",
		AppliedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env, err := NewEventEnvelope("override.applied", "appraisal-engine", payload)
	require.NoError(t, err)

	require.NoError(t, p.PublishEvent(context.Background(), TopicOverrideApplied, "cmp-1", env))
	require.Len(t, captured, 1)
	assert.Equal(t, []byte("cmp-1"), captured[0].Key)

	headers := map[string]string{}
	for _, h := range captured[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "override.applied", headers["event_type"])
	assert.Equal(t, "v1", headers["schema_version"])

	var decoded EventEnvelope
	require.NoError(t, json.Unmarshal(captured[0].Value, &decoded))
	var got OverrideAppliedPayload
	require.NoError(t, decoded.DecodePayload(&got))
	assert.Equal(t, payload, got)
	assert.NotEmpty(t, decoded.EventID)
}
