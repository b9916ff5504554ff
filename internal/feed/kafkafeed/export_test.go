package kafkafeed

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

type MessageReader = messageReader

// ReaderConfig exposes the reader configuration built by NewDialer.
func (d *Dialer) ReaderConfig() kafkago.ReaderConfig {
	return d.readerConfig
}

// WithFakes swaps the reader constructor and broker probe.
func (d *Dialer) WithFakes(newReader func(kafkago.ReaderConfig) MessageReader, probe func(context.Context, string) error) *Dialer {
	d.newReader = newReader
	d.probe = probe
	return d
}
