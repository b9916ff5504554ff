// Package kafkafeed reads snapshots from a Kafka topic that mirrors the live feed.
package kafkafeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/microsafety/microsafety/internal/feed"
)

// ErrNoBrokers is returned when no broker address is configured.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// Config holds configuration for the Kafka feed dialer.
type Config struct {
	// Brokers are the bootstrap broker addresses. Required.
	Brokers []string

	// Topic carries one JSON snapshot per message.
	// Default: microsafety.snapshots
	Topic string

	// GroupID enables committed offsets. Empty reads partition 0 directly.
	GroupID string

	// StartOffset applies when the group has no committed offset.
	// Default: kafka.LastOffset (only snapshots published after connecting)
	StartOffset int64

	// MaxBytes caps a single fetch.
	// Default: 4 MiB
	MaxBytes int
}

// DefaultTopic is the snapshot topic used when none is configured.
const DefaultTopic = "microsafety.snapshots"

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Dialer opens Kafka readers on demand.
type Dialer struct {
	readerConfig kafkago.ReaderConfig
	newReader    func(kafkago.ReaderConfig) messageReader
	probe        func(ctx context.Context, broker string) error
}

var _ feed.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer for the configured topic.
func NewDialer(cfg Config) (*Dialer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafkago.LastOffset
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}

	return &Dialer{
		readerConfig: kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.GroupID,
			StartOffset: startOffset,
			MaxBytes:    maxBytes,
			MaxWait:     time.Second,
		},
		newReader: func(rc kafkago.ReaderConfig) messageReader {
			return kafkago.NewReader(rc)
		},
		probe: probeBroker,
	}, nil
}

// Dial checks that the first broker answers and then opens a reader. The
// reader itself connects lazily, so without the probe an unreachable cluster
// would only show up on the first read.
func (d *Dialer) Dial(ctx context.Context) (feed.Conn, error) {
	if err := d.probe(ctx, d.readerConfig.Brokers[0]); err != nil {
		return nil, fmt.Errorf("probing kafka broker: %w", err)
	}
	return &Conn{reader: d.newReader(d.readerConfig)}, nil
}

func probeBroker(ctx context.Context, broker string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Conn is one open topic reader.
type Conn struct {
	reader messageReader
}

// Read returns the value of the next message.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot message: %w", err)
	}
	return msg.Value, nil
}

// Close closes the reader, committing offsets when a group is configured.
func (c *Conn) Close() error {
	return c.reader.Close()
}
