package transport

import (
	"sync"

	"github.com/gravwell/ethercat/status"
)

// Egress is the single-producer/multi-consumer, coalescing status queue of
// spec §4.5: "status readers always observe the newest snapshot, with
// older snapshots discarded." Status snapshots are immutable once
// published (spec §5), so a single guarded pointer is sufficient -- no
// actual queue depth is needed since every reader only ever wants the
// latest value.
type Egress struct {
	mu   sync.Mutex
	last *status.Snapshot
}

// NewEgress creates an empty coalescing status holder.
func NewEgress() *Egress {
	return &Egress{}
}

// Publish replaces the latest snapshot, discarding whatever was there
// before (spec testable property: "two consecutive get_latest calls with
// no intervening publish return the same snapshot; with intervening
// publishes, the later publish replaces any earlier undelivered
// snapshot").
func (e *Egress) Publish(s status.Snapshot) {
	e.mu.Lock()
	e.last = &s
	e.mu.Unlock()
}

// Latest returns the most recently published snapshot, implementing
// command.StatusReader.
func (e *Egress) Latest() (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return status.Snapshot{}, false
	}
	return *e.last, true
}

// LatestSnapshot is a typed convenience wrapper over Latest for callers
// that already import package status directly.
func (e *Egress) LatestSnapshot() (status.Snapshot, bool) {
	v, ok := e.Latest()
	if !ok {
		return status.Snapshot{}, false
	}
	return v.(status.Snapshot), true
}
