package kafkafeed_test

import (
	"context"
	"errors"
	"io"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/feed/kafkafeed"
)

type fakeReader struct {
	msgs   []kafkago.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafkago.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func okProbe(context.Context, string) error { return nil }

func TestNewDialer_Defaults(t *testing.T) {
	d, err := kafkafeed.NewDialer(kafkafeed.Config{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)

	rc := d.ReaderConfig()
	assert.Equal(t, kafkafeed.DefaultTopic, rc.Topic)
	assert.Equal(t, kafkago.LastOffset, rc.StartOffset)
	assert.Equal(t, 4<<20, rc.MaxBytes)
	assert.Equal(t, []string{"localhost:9092"}, rc.Brokers)
}

func TestNewDialer_RequiresBrokers(t *testing.T) {
	_, err := kafkafeed.NewDialer(kafkafeed.Config{Topic: "snapshots"})
	assert.ErrorIs(t, err, kafkafeed.ErrNoBrokers)
}

func TestDialer_ReadsMessageValues(t *testing.T) {
	reader := &fakeReader{msgs: []kafkago.Message{
		{Key: []byte("tick-1"), Value: []byte(`{"tick":1}`)},
		{Key: []byte("tick-2"), Value: []byte(`{"tick":2}`)},
	}}

	d, err := kafkafeed.NewDialer(kafkafeed.Config{Brokers: []string{"b:9092"}, GroupID: "dash"})
	require.NoError(t, err)

	var gotConfig kafkago.ReaderConfig
	d.WithFakes(func(rc kafkago.ReaderConfig) kafkafeed.MessageReader {
		gotConfig = rc
		return reader
	}, okProbe)

	ctx := context.Background()
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dash", gotConfig.GroupID)

	data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":1}`, string(data))

	data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":2}`, string(data))

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, conn.Close())
	assert.True(t, reader.closed)
}

func TestDialer_ProbeFailure(t *testing.T) {
	d, err := kafkafeed.NewDialer(kafkafeed.Config{Brokers: []string{"down:9092"}})
	require.NoError(t, err)

	created := false
	d.WithFakes(func(kafkago.ReaderConfig) kafkafeed.MessageReader {
		created = true
		return &fakeReader{}
	}, func(context.Context, string) error {
		return errors.New("connection refused")
	})

	_, err = d.Dial(context.Background())
	assert.Error(t, err)
	assert.False(t, created, "no reader is opened when the broker is unreachable")
}
