// Package command implements the tagged-variant Command enumeration (spec
// §6, §9) and the DriveHandle value type that replaces the Python
// original's dynamic attribute-attachment pattern
// (original_source/cia402/driver.py's _enqueue_command/_read_status
// closures attached onto drive instances at construction time).
package command

import "time"

// Kind tags which variant of Command is populated. Per spec §9, commands
// are a tagged variant enumeration, not a dynamic dictionary.
type Kind int

const (
	KindNoOp Kind = iota
	KindSetMode
	KindSetVelocity
	KindSetPosition
	KindSetPositionCSP
	KindSetTorque
	KindStartHoming
	KindArmProbe
	KindDisableProbe
	KindEnableDrive
	KindDisableDrive
	KindStopMotion
	KindWriteRawPdo
	KindWriteSdo
	KindReadSdo
	KindStartJerkMove
	KindStartJerkVelocity
	KindStopJerk
	KindClearFault
)

// ProbeEdge selects which edge of the touch-probe input probe 1 latches on, per
// original_source/cia402/driver.py's arm_probe semantic-edge convenience
// (SUPPLEMENTED FEATURES item 2 of SPEC_FULL.md).
type ProbeEdge int

const (
	ProbeEdgePositive ProbeEdge = iota
	ProbeEdgeNegative
)

// JerkLimits optionally overrides a drive's configured planner limits for
// one jerk-limited move or velocity command.
type JerkLimits struct {
	MaxVelocity     float64
	MaxAcceleration float64
	MaxJerk         float64
	HasOverride     bool
}

// Command is the single tagged-variant type carried across the ingress
// queue. Slave identifies which drive the command targets (-1 for
// network-wide no-ops). Only the fields relevant to Kind are populated;
// this mirrors a protobuf-style oneof more than a Go interface union
// because commands cross the queue boundary as plain values with no
// dynamic dispatch required on the hot path.
type Command struct {
	Kind  Kind
	Slave int

	Mode int // cia402.Mode value, for KindSetMode

	Velocity int32 // KindSetVelocity, KindStartJerkVelocity
	Position int32 // KindSetPosition, KindSetPositionCSP, KindStartJerkMove
	Torque   int16 // KindSetTorque

	ProbeEdge       ProbeEdge
	ProbeContinuous bool

	JerkLimits JerkLimits

	Index    uint16 // KindWriteRawPdo, KindWriteSdo, KindReadSdo
	Subindex uint8
	Payload  []byte

	// ReadResult receives the read_sdo response; set by the caller before
	// enqueueing a KindReadSdo command if a synchronous answer is wanted.
	ReadResult chan SdoResult

	Enqueued time.Time
}

// SdoResult is the asynchronous answer to a KindReadSdo command.
type SdoResult struct {
	Value []byte
	Err   error
}

// Sender enqueues a Command onto the ingress queue without blocking,
// reporting back-pressure (spec §7 "command queue full on enqueue ->
// caller gets back-pressure signal") rather than blocking the caller.
type Sender interface {
	Send(Command) (accepted bool)
}

// StatusReader returns the most recently published, coalesced status
// snapshot (spec §4.5). The concrete snapshot type lives in package status
// to avoid a command<->status import cycle, so Latest returns it as
// interface{}. transport.Egress implements this interface; DriveHandle
// does not use it.
type StatusReader interface {
	Latest() (interface{}, bool)
}

// DriveHandle is a plain value type over the shared command sender for one
// bus position -- an explicit, allocation-free value any caller can copy in
// place of the original's dynamically attached _enqueue_command closure.
// It holds no status reader: status is read separately, from a
// StatusReader such as transport.Egress.
type DriveHandle struct {
	sender Sender
	slave  int
}

// NewDriveHandle builds a handle bound to one slave position.
func NewDriveHandle(sender Sender, slave int) DriveHandle {
	return DriveHandle{sender: sender, slave: slave}
}

func (h DriveHandle) enqueue(c Command) bool {
	c.Slave = h.slave
	return h.sender.Send(c)
}

func (h DriveHandle) SetMode(mode int) bool {
	return h.enqueue(Command{Kind: KindSetMode, Mode: mode})
}

func (h DriveHandle) SetVelocity(v int32) bool {
	return h.enqueue(Command{Kind: KindSetVelocity, Velocity: v})
}

func (h DriveHandle) SetPosition(p int32) bool {
	return h.enqueue(Command{Kind: KindSetPosition, Position: p})
}

func (h DriveHandle) SetPositionCSP(p int32) bool {
	return h.enqueue(Command{Kind: KindSetPositionCSP, Position: p})
}

func (h DriveHandle) SetTorque(t int16) bool {
	return h.enqueue(Command{Kind: KindSetTorque, Torque: t})
}

func (h DriveHandle) StartHoming() bool {
	return h.enqueue(Command{Kind: KindStartHoming})
}

// ArmProbe translates a semantic edge into the raw 0x60B8 probe-function
// bitmask at the motion controller, not here -- this call only tags
// intent; original_source/cia402/driver.py.arm_probe's 0x0005/0x0009
// values are composed in motion.State.Apply from the cia402 PFBit*
// constants. continuous is carried on the command but does not change
// the value written.
func (h DriveHandle) ArmProbe(edge ProbeEdge, continuous bool) bool {
	return h.enqueue(Command{Kind: KindArmProbe, ProbeEdge: edge, ProbeContinuous: continuous})
}

func (h DriveHandle) DisableProbe() bool {
	return h.enqueue(Command{Kind: KindDisableProbe})
}

func (h DriveHandle) EnableDrive() bool  { return h.enqueue(Command{Kind: KindEnableDrive}) }
func (h DriveHandle) DisableDrive() bool { return h.enqueue(Command{Kind: KindDisableDrive}) }
func (h DriveHandle) StopMotion() bool   { return h.enqueue(Command{Kind: KindStopMotion}) }
func (h DriveHandle) ClearFault() bool   { return h.enqueue(Command{Kind: KindClearFault}) }

func (h DriveHandle) WriteRawPdo(index uint16, subindex uint8, payload []byte) bool {
	return h.enqueue(Command{Kind: KindWriteRawPdo, Index: index, Subindex: subindex, Payload: payload})
}

func (h DriveHandle) WriteSdo(index uint16, subindex uint8, payload []byte) bool {
	return h.enqueue(Command{Kind: KindWriteSdo, Index: index, Subindex: subindex, Payload: payload})
}

// ReadSdo enqueues a read and returns the channel the result will arrive
// on; the channel is buffered so the worker's write never blocks even if
// the caller stops listening.
func (h DriveHandle) ReadSdo(index uint16, subindex uint8) (<-chan SdoResult, bool) {
	ch := make(chan SdoResult, 1)
	ok := h.enqueue(Command{Kind: KindReadSdo, Index: index, Subindex: subindex, ReadResult: ch})
	return ch, ok
}

func (h DriveHandle) StartJerkMove(position int32, limits JerkLimits) bool {
	return h.enqueue(Command{Kind: KindStartJerkMove, Position: position, JerkLimits: limits})
}

func (h DriveHandle) StartJerkVelocity(velocity int32, limits JerkLimits) bool {
	return h.enqueue(Command{Kind: KindStartJerkVelocity, Velocity: velocity, JerkLimits: limits})
}

func (h DriveHandle) StopJerk() bool { return h.enqueue(Command{Kind: KindStopJerk}) }
