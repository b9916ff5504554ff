package worker

import (
	"context"

	"github.com/rs/zerolog"
)

// Settled records how a trigger message was settled.
type Settled struct {
	Acked  bool
	Nacked bool
}

func (s *Settled) Ack()  { s.Acked = true }
func (s *Settled) Nack() { s.Nacked = true }

// HandleTrigger runs the trigger handler without a Pub/Sub client.
func HandleTrigger(ctx context.Context, job *RefreshJob, data []byte) *Settled {
	h := &PubSubHandler{refreshJob: job, logger: zerolog.Nop()}
	s := &Settled{}
	h.handle(ctx, zerolog.Nop(), data, s)
	return s
}
