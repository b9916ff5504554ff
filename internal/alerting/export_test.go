package alerting

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

// WriterFunc records Kafka writes in tests.
type WriterFunc func(ctx context.Context, msgs ...kafkago.Message) error

func (f WriterFunc) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	return f(ctx, msgs...)
}

func (f WriterFunc) Close() error { return nil }

// NewKafkaSinkWithWriter builds a sink around a fake writer.
func NewKafkaSinkWithWriter(w WriterFunc) *KafkaSink {
	return &KafkaSink{writer: w}
}
