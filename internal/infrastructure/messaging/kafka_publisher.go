// Package messaging publishes processing run audit records outside the database.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/internal/domain/entity"
)

// KafkaConfig configures the audit topic writer
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Acks         int
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements port.AuditSink by writing one message per run.
// Messages are keyed by resource so one person's runs stay ordered.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
	logger *zap.Logger
}

// auditMessage is the payload published for every run
type auditMessage struct {
	SchemaVersion string                `json:"schema_version"`
	PublishedAt   time.Time             `json:"published_at"`
	Run           *entity.ProcessingRun `json:"run"`
}

const auditSchemaVersion = "1"

// NewKafkaPublisher creates a publisher for cfg.Topic
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(cfg.Topic, writer, logger), nil
}

func newKafkaPublisher(topic string, writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		topic:  topic,
		writer: writer,
		logger: logger.With(zap.String("component", "audit_publisher"), zap.String("topic", topic)),
	}
}

// Record publishes the run
func (p *KafkaPublisher) Record(ctx context.Context, run *entity.ProcessingRun) error {
	value, err := json.Marshal(auditMessage{
		SchemaVersion: auditSchemaVersion,
		PublishedAt:   time.Now().UTC(),
		Run:           run,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audit message: %w", err)
	}

	key := run.ResourceKey
	if key == "" {
		key = run.ID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(run.ID)},
			{Key: "status", Value: []byte(run.Status)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish processing run",
			zap.String("run_id", run.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish processing run: %w", err)
	}

	p.logger.Debug("Published processing run", zap.String("run_id", run.ID))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ port.AuditSink = (*KafkaPublisher)(nil)
