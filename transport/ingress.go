// Package transport implements the bounded, non-blocking command/status
// queues of spec §4.5/§5 connecting external callers to the Cyclic
// Worker.
package transport

import (
	"context"
	"time"

	"github.com/joeycumines/go-longpoll"

	"github.com/gravwell/ethercat/command"
)

// defaultDrainBound is the "small fixed bound (e.g., 16 per cycle)" of
// spec §4.1 step 2.
const defaultDrainBound = 16

// Ingress is the multi-producer/single-consumer command queue between
// application callers and the worker (spec §5). Enqueue never blocks;
// under overload it reports back-pressure to the caller instead.
type Ingress struct {
	ch chan command.Command
}

// NewIngress creates an ingress queue with the given buffer capacity.
func NewIngress(capacity int) *Ingress {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ingress{ch: make(chan command.Command, capacity)}
}

// Send implements command.Sender: a non-blocking enqueue that reports
// false (back-pressure) when the queue is full, per spec §7.
func (in *Ingress) Send(c command.Command) bool {
	c.Enqueued = time.Now()
	select {
	case in.ch <- c:
		return true
	default:
		return false
	}
}

// Drain pulls up to bound commands (defaultDrainBound if bound<=0) off the
// queue without blocking beyond a negligible instant, invoking handle for
// each. This is the worker-side half of spec §4.1 step 2 and the
// non-blocking queue-drain suspension point of spec §5.
//
// Implemented via github.com/joeycumines/go-longpoll's generic Channel:
// MinSize:-1 with a PartialTimeout of a single nanosecond turns the
// library's "wait for at least one value, up to PartialTimeout" mode into
// a practically non-blocking drain -- an explicit zero PartialTimeout
// would fall back to the library's 50ms default (its zero-value check
// can't distinguish "disabled" from "unset"), so a minimal nonzero value
// is used instead to get sub-microsecond behavior when the queue is empty
// while still honoring Channel's documented semantics.
func (in *Ingress) Drain(bound int, handle func(command.Command)) error {
	if bound <= 0 {
		bound = defaultDrainBound
	}
	cfg := &longpoll.ChannelConfig{
		MaxSize:        bound,
		MinSize:        -1,
		PartialTimeout: time.Nanosecond,
	}
	err := longpoll.Channel(context.Background(), cfg, in.ch, func(c command.Command) error {
		handle(c)
		return nil
	})
	if err != nil {
		// io.EOF only occurs if the channel were closed, which Ingress never does.
		return err
	}
	return nil
}
