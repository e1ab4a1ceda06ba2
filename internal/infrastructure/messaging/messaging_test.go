package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recordingSink struct {
	runs []string
	err  error
}

func (s *recordingSink) Record(ctx context.Context, run *entity.ProcessingRun) error {
	s.runs = append(s.runs, run.ID)
	return s.err
}

func TestKafkaPublisher_Record(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher("timesheet.runs", w, zap.NewNop())

	run := &entity.ProcessingRun{ID: "run-1", ResourceKey: "Jane_Smith", Status: entity.RunStatusProcessed, EntryCount: 4}
	require.NoError(t, p.Record(context.Background(), run))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "Jane_Smith", string(msg.Key))

	var payload struct {
		SchemaVersion string               `json:"schema_version"`
		Run           entity.ProcessingRun `json:"run"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, auditSchemaVersion, payload.SchemaVersion)
	assert.Equal(t, "run-1", payload.Run.ID)
	assert.Equal(t, 4, payload.Run.EntryCount)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_FailedRunKeyedByID(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher("timesheet.runs", w, zap.NewNop())

	require.NoError(t, p.Record(context.Background(), &entity.ProcessingRun{ID: "run-9", Status: entity.RunStatusFailed}))
	assert.Equal(t, "run-9", string(w.messages[0].Key))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := newKafkaPublisher("timesheet.runs", &fakeWriter{err: errors.New("broker down")}, zap.NewNop())
	err := p.Record(context.Background(), &entity.ProcessingRun{ID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewKafkaPublisher_Validates(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Topic: "runs"}, zap.NewNop())
	assert.Error(t, err)
}

func TestFanout_Record(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("sink failed")}
	f := NewFanout(failing, nil, ok)

	err := f.Record(context.Background(), &entity.ProcessingRun{ID: "run-1"})

	require.Error(t, err)
	assert.Equal(t, []string{"run-1"}, ok.runs)
	assert.Equal(t, []string{"run-1"}, failing.runs)
}
