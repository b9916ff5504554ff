// Package alerting forwards newly active alerts seen on the live feed to an
// outbound sink.
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/microsafety/microsafety/internal/feed"
)

// ErrNoBrokers is returned when the Kafka sink has no bootstrap brokers.
var ErrNoBrokers = errors.New("kafka alert sink: no brokers configured")

// DefaultTopic is the Kafka topic alerts are published to.
const DefaultTopic = "microsafety.alerts"

// Sink receives alerts that just became active.
type Sink interface {
	Publish(ctx context.Context, alerts []feed.Alert) error
	Close() error
}

// LogSink writes each alert as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that only logs.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs every alert at warn level.
func (s *LogSink) Publish(_ context.Context, alerts []feed.Alert) error {
	for _, a := range alerts {
		s.logger.Warn().
			Str("alert_id", a.ID).
			Str("node_id", a.NodeID).
			Str("severity", string(a.Severity)).
			Str("alert_type", string(a.AlertType)).
			Msg(a.Message)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConfig holds configuration for the Kafka sink.
type KafkaConfig struct {
	// Brokers to bootstrap from. Required.
	Brokers []string

	// Topic to produce to.
	// Default: DefaultTopic
	Topic string
}

// KafkaSink produces one message per alert, keyed by alert id.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a Kafka producer for the alert topic.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaSink{writer: w}, nil
}

// Publish writes the alerts in a single batch.
func (s *KafkaSink) Publish(ctx context.Context, alerts []feed.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := alertMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return s.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func alertMessage(a feed.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert %s: %w", a.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(a.Severity)},
			{Key: "alert_type", Value: []byte(a.AlertType)},
			{Key: "raised_at", Value: []byte(a.Timestamp.UTC().Format(time.RFC3339))},
		},
	}, nil
}
