// Package status defines the published NetworkStatus snapshot (spec §3)
// and the jitter ring buffer used to compute its rolling percentiles (spec
// §9's "fixed-capacity ring buffer, compute percentiles on demand").
package status

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PlannerState mirrors the planner's own public state for status display;
// defined here (rather than imported from package planner) to avoid a
// status<->planner import cycle, since planner does not need to know about
// status at all.
type PlannerState int

const (
	PlannerIdle PlannerState = iota
	PlannerActive
	PlannerAborted
)

// SlaveStatus is the per-slave projection of NetworkStatus (spec §3).
type SlaveStatus struct {
	Position int

	Statusword  uint16
	ModeDisplay int32
	PositionAct int32
	VelocityAct int32
	TorqueAct   int16

	ProbePos1  int32
	ProbePos2  int32
	ProbeValid bool

	DigitalInputs uint32
	ErrorCode     uint16

	Enabled             bool
	Fault               bool
	Warning             bool
	TargetReached       bool
	SetpointAcknowledged bool

	InOp           bool
	OpDropoutCount int

	PdoHealthy map[uint16]bool

	Planner      PlannerState
	PlannerError string
}

// ModeMatches reports whether the slave's mode display equals the given
// mode; when the caller reports the mode display register as not mapped
// (mapped == false), it returns true since nothing can be verified
// -- the original's non-blocking _verify_last_action treats an
// unverifiable check as passing (SUPPLEMENTED FEATURES item 3).
func (s SlaveStatus) ModeMatches(mode int32, mapped bool) bool {
	if !mapped {
		return true
	}
	return s.ModeDisplay == mode
}

// Snapshot is the immutable, coalesced NetworkStatus published onto the
// egress queue (spec §3, §4.5).
type Snapshot struct {
	InstanceID uuid.UUID
	Timestamp  time.Time

	ConfiguredCyclePeriod time.Duration
	LastCycleDuration     time.Duration
	LastJitter            time.Duration
	MaxJitter             time.Duration
	JitterP95             time.Duration
	JitterP99             time.Duration
	JitterP999            time.Duration

	DeadlineMisses uint64

	DomainWorkingCounter int
	DomainState          string
	MinWorkingCounter    int
	MaxWorkingCounter    int

	MotionCommandsBlocked uint64

	Slaves map[int]SlaveStatus
}

// JitterRing is a fixed-capacity ring buffer of recent per-cycle jitter
// samples, used to compute p95/p99/p99.9 at publish time (spec §9: "sort
// copy at publish time is acceptable at 20 Hz").
type JitterRing struct {
	buf  []time.Duration
	next int
	full bool
}

// NewJitterRing allocates a ring of the given capacity.
func NewJitterRing(capacity int) *JitterRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &JitterRing{buf: make([]time.Duration, capacity)}
}

// Add records one jitter sample, evicting the oldest once the ring fills.
func (r *JitterRing) Add(d time.Duration) {
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *JitterRing) samples() []time.Duration {
	if r.full {
		return r.buf
	}
	return r.buf[:r.next]
}

// Percentile returns the p-th percentile (0..100) of the stored samples by
// sorting a copy; returns 0 if no samples are recorded yet.
func (r *JitterRing) Percentile(p float64) time.Duration {
	s := r.samples()
	if len(s) == 0 {
		return 0
	}
	cp := make([]time.Duration, len(s))
	copy(cp, s)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	idx := int(p / 100 * float64(len(cp)))
	if idx >= len(cp) {
		idx = len(cp) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return cp[idx]
}
