// Package motion implements the Mode & Motion Controller of spec §4.3: per
// slave, per cycle it turns the currently-requested mode/position/
// velocity/torque/homing/probe intent into mode-byte, target-register, and
// controlword values ready to be written into the outbound process image.
//
// Grounded on cia402's register/bit constants (shared source of truth for
// the wire-level meaning of the bits this package manipulates) and on the
// edge-pulse discipline spec.md's Design Notes (§9) describe for Profile
// Position's new-set-point bit: "pending/active/start_time/
// force_clear_cycles" fields driving a guaranteed 0->1 transition.
package motion

import (
	"time"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/command"
)

// Pulse tracks a new-set-point strobe (bit 4) across cycles: a request is
// first "pending", becomes "active" on the cycle the bit is actually
// asserted, and clears once the drive acknowledges or a timeout elapses.
type Pulse struct {
	Pending   bool
	Active    bool
	StartTime time.Time
	// ForceClear instructs the next Apply to hold the set-point bit low
	// for exactly one cycle, guaranteeing a fresh 0->1 edge when a new
	// request arrives while a previous pulse is still active.
	ForceClear bool
}

// request marks a new pulse request, forcing one cleared cycle first if a
// previous pulse is still active (spec §4.3 "force one cycle of cleared
// set-point bit to guarantee a fresh 0->1 edge").
func (p *Pulse) request() {
	if p.Active {
		p.ForceClear = true
	}
	p.Pending = true
}

// advance asserts or clears the strobe bit for this cycle and reports
// whether it should currently be asserted.
func (p *Pulse) advance(now time.Time, ackObserved bool, timeout time.Duration) (assert bool) {
	if p.ForceClear {
		p.ForceClear = false
		p.Active = false
		return false
	}
	if p.Pending || p.Active {
		if !p.Active {
			p.Active = true
			p.Pending = false
			p.StartTime = now
		}
		if ackObserved || (timeout > 0 && now.Sub(p.StartTime) >= timeout) {
			p.Active = false
			return false
		}
		return true
	}
	return false
}

// Intent is the currently-desired setpoint for one slave, maintained by
// the caller across cycles and updated as commands are drained off the
// ingress queue.
type Intent struct {
	Mode cia402.Mode

	TargetPosition    int32
	NewPositionRequest bool

	TargetVelocity int32

	TargetTorque int16

	HomingRequest bool

	ProbeArm        bool
	ProbeEdge       command.ProbeEdge
	ProbeContinuous bool
	ProbeDisarm     bool

	// CSPPosition, when non-nil, is the next Cyclic-Synchronous-Position
	// setpoint (from an application writer or the Planner); nil means no
	// new setpoint arrived this cycle.
	CSPPosition *int32
}

// State is the per-slave motion state carried across cycles: pulse
// tracking, CSP double-buffering, and the last values actually written
// (for dedup of service-channel-only registers).
type State struct {
	PositionPulse Pulse
	VelocityPulse Pulse
	HomingPulse   Pulse

	lastModeWritten    cia402.Mode
	modeWritten        bool
	lastVelocityWritten int32
	velocityWritten     bool
	lastTorqueWritten   int16
	torqueWritten       bool

	cspCurrent int32
	cspSeeded  bool
}

// RequestPosition records a new Profile Position / Homing move request.
func (s *State) RequestPosition(pos int32, homing bool) {
	if homing {
		s.HomingPulse.request()
	} else {
		s.PositionPulse.request()
	}
}

// Params configures per-drive clamping and register-mapping facts the
// Controller needs to decide between PDO writes and deduplicated
// service-channel writes.
type Params struct {
	ModeMapped     bool
	VelocityMapped bool
	TorqueMapped   bool

	RequiresVelocitySetpointToggle bool
	RequiresTorqueSetpointToggle   bool

	AckMask    uint16
	AckTimeout time.Duration

	MaxVelocity int32
	MaxTorque   int16

	// PosLimitMin/PosLimitMax bound PP/CSP target positions when not equal
	// (Min==Max==0 means "no limit configured", matching the zero-value
	// DriveConfig default rather than clamping every target to zero).
	PosLimitMin int32
	PosLimitMax int32
}

func (p Params) clampPosition(v int32) int32 {
	if p.PosLimitMin == 0 && p.PosLimitMax == 0 {
		return v
	}
	return clampI32(v, p.PosLimitMin, p.PosLimitMax)
}

// Output is what the caller should write into the outbound image (and/or
// queue as service-channel writes) this cycle.
type Output struct {
	ModeByte       cia402.Mode
	WriteModeNow   bool // false => only write via service channel, and only if changed
	ModeChanged    bool

	TargetPosition    int32
	WriteTargetPosition bool

	TargetVelocity    int32
	WriteTargetVelocity bool
	VelocityChanged     bool // for service-channel dedup when unmapped

	TargetTorque    int16
	WriteTargetTorque bool
	TorqueChanged     bool

	// ProbeFunctionValue is the 0x60B8 word to write when WriteProbeFunction
	// is set; this is a write-once action, not a per-cycle mapped value.
	ProbeFunctionValue uint16
	WriteProbeFunction bool

	ControlwordBits uint16 // bits 4,5,6,8 contributed by this controller
}

const (
	motionControlMask = cia402.CWBitNewSetPoint | cia402.CWBitChangeImmediate | cia402.CWBitAbsRel | cia402.CWBitHalt
)

// Apply computes this cycle's mode/target/controlword contribution for one
// slave. statusword is the just-received value; now is used for pulse
// timeout accounting.
func (s *State) Apply(now time.Time, statusword uint16, in Intent, p Params) Output {
	var out Output

	out.ModeByte = in.Mode
	if p.ModeMapped {
		out.WriteModeNow = true
	} else if !s.modeWritten || s.lastModeWritten != in.Mode {
		out.ModeChanged = true
	}
	s.modeWritten = true
	s.lastModeWritten = in.Mode

	ackObserved := p.AckMask != 0 && (statusword&p.AckMask) == p.AckMask

	switch in.Mode {
	case cia402.ModePP:
		if in.NewPositionRequest {
			s.PositionPulse.request()
		}
		assert := s.PositionPulse.advance(now, ackObserved, p.AckTimeout)
		out.TargetPosition = p.clampPosition(in.TargetPosition)
		out.WriteTargetPosition = true
		// CHANGE-IMMEDIATELY set, HALT and ABS/REL both left clear (absolute move).
		out.ControlwordBits = cia402.CWBitChangeImmediate
		if assert {
			out.ControlwordBits |= cia402.CWBitNewSetPoint
		}

	case cia402.ModeHM:
		if in.HomingRequest {
			s.HomingPulse.request()
		}
		assert := s.HomingPulse.advance(now, ackObserved, p.AckTimeout)
		if assert {
			out.ControlwordBits |= cia402.CWBitNewSetPoint
		}

	case cia402.ModePV:
		v := clampI32(in.TargetVelocity, -p.MaxVelocity, p.MaxVelocity)
		if p.VelocityMapped {
			out.WriteTargetVelocity = true
		} else if !s.velocityWritten || s.lastVelocityWritten != v {
			out.WriteTargetVelocity = true
			out.VelocityChanged = true
		}
		out.TargetVelocity = v
		s.velocityWritten = true
		s.lastVelocityWritten = v
		if p.RequiresVelocitySetpointToggle {
			if !s.VelocityPulse.Pending && !s.VelocityPulse.Active {
				s.VelocityPulse.request()
			}
			if s.VelocityPulse.advance(now, ackObserved, p.AckTimeout) {
				out.ControlwordBits |= cia402.CWBitNewSetPoint
			}
		}

	case cia402.ModePT:
		out.TargetVelocity = 0
		out.WriteTargetVelocity = true
		tq := clampI16(in.TargetTorque, -p.MaxTorque, p.MaxTorque)
		if p.TorqueMapped {
			out.WriteTargetTorque = true
		} else if !s.torqueWritten || s.lastTorqueWritten != tq {
			out.WriteTargetTorque = true
			out.TorqueChanged = true
		}
		out.TargetTorque = tq
		s.torqueWritten = true
		s.lastTorqueWritten = tq
		if p.RequiresTorqueSetpointToggle {
			if !s.VelocityPulse.Pending && !s.VelocityPulse.Active {
				s.VelocityPulse.request()
			}
			if s.VelocityPulse.advance(now, ackObserved, p.AckTimeout) {
				out.ControlwordBits |= cia402.CWBitNewSetPoint
			}
		}

	case cia402.ModeCSP:
		next := in.CSPPosition
		if next == nil && !s.cspSeeded {
			// no setpoint yet and never seeded (SeedCSP not called): skip
			// the write rather than command a step move to 0.
			out.TargetPosition = wrapInt32(0)
			out.WriteTargetPosition = false
		} else {
			if next != nil {
				s.cspCurrent = p.clampPosition(wrapInt32(*next))
				s.cspSeeded = true
			}
			out.TargetPosition = s.cspCurrent
			out.WriteTargetPosition = s.cspSeeded
		}
	}

	// Touch probe arming is a one-shot 0x60B8 write independent of mode;
	// disarm takes precedence if both arrive the same cycle.
	switch {
	case in.ProbeDisarm:
		out.WriteProbeFunction = true
		out.ProbeFunctionValue = 0
	case in.ProbeArm:
		out.WriteProbeFunction = true
		out.ProbeFunctionValue = cia402.PFBitEnableProbe1
		if in.ProbeEdge == command.ProbeEdgeNegative {
			out.ProbeFunctionValue |= cia402.PFBitProbe1NegEdge
		} else {
			out.ProbeFunctionValue |= cia402.PFBitProbe1PosEdge
		}
	}

	return out
}

// SeedCSP seeds the CSP double-buffer with the drive's actual position,
// used on the first CSP cycle so the very first write is a no-op.
func (s *State) SeedCSP(actualPosition int32) {
	if !s.cspSeeded {
		s.cspCurrent = actualPosition
		s.cspSeeded = true
	}
}

// ResetOnOpDropout clears pulse/CSP state when a slave leaves OP, per spec
// §4.1 step 4 ("transitions out of OP ... clear controlword and pulse
// state").
func (s *State) ResetOnOpDropout() {
	*s = State{}
}

func clampI32(v, lo, hi int32) int32 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI16(v, lo, hi int16) int16 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapInt32 is the identity function at the Go int32 type but documents
// the CSP wraparound requirement of spec §4.3: arithmetic on the
// underlying value must wrap at the signed 32-bit boundary, which is
// exactly what int32 addition/assignment already does, preserving the bit
// pattern the wire format requires.
func wrapInt32(v int32) int32 { return v }

// motionKinds is the set of command kinds the forbid_motion_commands
// configuration option counts and drops before they ever reach this
// package's state, per spec §4.3's closing paragraph.
var motionKinds = map[command.Kind]bool{
	command.KindSetVelocity:       true,
	command.KindSetPosition:       true,
	command.KindSetPositionCSP:    true,
	command.KindSetTorque:         true,
	command.KindStartHoming:       true,
	command.KindStartJerkMove:     true,
	command.KindStartJerkVelocity: true,
}

// IsMotionCommand reports whether kind is a motion-affecting command for
// the purposes of forbid_motion_commands.
func IsMotionCommand(kind command.Kind) bool {
	return motionKinds[kind]
}
