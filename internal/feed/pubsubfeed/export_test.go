package pubsubfeed

import (
	"context"

	"github.com/rs/zerolog"
)

// ReceiveFunc adapts a function to the receiver interface.
type ReceiveFunc func(ctx context.Context, handle func(context.Context, []byte)) error

func (f ReceiveFunc) Receive(ctx context.Context, handle func(context.Context, []byte)) error {
	return f(ctx, handle)
}

// NewDialerWithReceiver builds a dialer around a fake receiver.
func NewDialerWithReceiver(r ReceiveFunc) *Dialer {
	return &Dialer{receiver: r, subscriptionName: "test", logger: zerolog.Nop()}
}
