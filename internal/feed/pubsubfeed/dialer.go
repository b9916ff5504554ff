// Package pubsubfeed reads snapshots from a Google Cloud Pub/Sub subscription.
package pubsubfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/microsafety/microsafety/internal/feed"
)

// ErrReceiveStopped is returned by Read once the subscription stops delivering.
var ErrReceiveStopped = errors.New("pubsub receive stopped")

// Config holds configuration for the Pub/Sub feed dialer.
type Config struct {
	ProjectID        string
	SubscriptionName string
	Logger           zerolog.Logger
}

// receiver delivers message payloads until ctx is cancelled or delivery fails.
type receiver interface {
	Receive(ctx context.Context, handle func(ctx context.Context, data []byte)) error
}

type subscriberReceiver struct {
	sub *pubsub.Subscriber
}

func (r subscriberReceiver) Receive(ctx context.Context, handle func(context.Context, []byte)) error {
	return r.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		handle(ctx, msg.Data)
		// Snapshots are superseded by the next push; never redeliver.
		msg.Ack()
	})
}

// Dialer opens subscription streams.
type Dialer struct {
	client           *pubsub.Client
	receiver         receiver
	subscriptionName string
	logger           zerolog.Logger
}

var _ feed.Dialer = (*Dialer)(nil)

// NewDialer creates the Pub/Sub client and subscriber.
func NewDialer(ctx context.Context, cfg Config) (*Dialer, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One snapshot in flight keeps delivery roughly in publish order.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &Dialer{
		client:           client,
		receiver:         subscriberReceiver{sub: subscriber},
		subscriptionName: cfg.SubscriptionName,
		logger:           cfg.Logger,
	}, nil
}

// Dial starts receiving. Delivery failures end the returned connection.
func (d *Dialer) Dial(ctx context.Context) (feed.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.logger.Info().
		Str("subscription", d.subscriptionName).
		Msg("starting pubsub feed receiver")

	return startConn(d.receiver), nil
}

// Close closes the Pub/Sub client.
func (d *Dialer) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Conn buffers deliveries from a running Receive call.
type Conn struct {
	msgs   chan []byte
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

func startConn(r receiver) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		msgs:   make(chan []byte),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(c.done)
		c.err = r.Receive(ctx, func(ctx context.Context, data []byte) {
			select {
			case c.msgs <- data:
			case <-ctx.Done():
			}
		})
	}()

	return c
}

// Read returns the next delivered payload.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.msgs:
		return data, nil
	case <-c.done:
		if c.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReceiveStopped, c.err)
		}
		return nil, ErrReceiveStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops receiving and waits for the receiver to return.
func (c *Conn) Close() error {
	c.once.Do(c.cancel)
	<-c.done
	return nil
}
