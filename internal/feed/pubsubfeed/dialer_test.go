package pubsubfeed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsafety/microsafety/internal/feed/pubsubfeed"
)

func TestConn_DeliversPayloads(t *testing.T) {
	d := pubsubfeed.NewDialerWithReceiver(func(ctx context.Context, handle func(context.Context, []byte)) error {
		handle(ctx, []byte(`{"tick":1}`))
		handle(ctx, []byte(`{"tick":2}`))
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx)
	require.NoError(t, err)

	first, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":1}`, string(first))

	second, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":2}`, string(second))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, pubsubfeed.ErrReceiveStopped)
}

func TestConn_ReceiveFailureEndsConnection(t *testing.T) {
	boom := errors.New("permission denied")
	d := pubsubfeed.NewDialerWithReceiver(func(context.Context, func(context.Context, []byte)) error {
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, pubsubfeed.ErrReceiveStopped)
	assert.ErrorIs(t, err, boom)
}

func TestDial_CancelledContext(t *testing.T) {
	d := pubsubfeed.NewDialerWithReceiver(func(ctx context.Context, _ func(context.Context, []byte)) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
