// Package planner implements the optional per-axis jerk-limited trajectory
// generator of spec §4.4 that produces Cyclic-Synchronous-Position
// setpoints.
//
// Grounded on original_source/ruckig_planner.py's RuckigCspPlanner: the
// same two request kinds (position move, velocity command), the same
// large-magnitude position rebase technique, and the same
// continuously-advanced lookahead target for velocity mode. No
// trajectory-generation library exists anywhere in the retrieval pack (the
// teacher has no motion-planning domain at all), so the jerk-limited
// integration itself -- a bounded-jerk trapezoidal approach toward the
// commanded position or velocity -- is this package's own from-scratch
// implementation of the behavior the original documents, in place of a
// binding to the external "ruckig" library the original optionally loads.
package planner

import "math"

// rebaseThreshold mirrors original_source/ruckig_planner.py's
// `abs(cur_pos) > 1_000_000_000` magnitude check.
const rebaseThreshold = 1_000_000_000.0

// Limits are the per-move velocity/acceleration/jerk caps. All three must
// be strictly positive (spec §4.4: "Limits must be strictly positive or
// the start request is rejected with an error").
type Limits struct {
	MaxVelocity     float64
	MaxAcceleration float64
	MaxJerk         float64
}

func (l Limits) validate() error {
	if l.MaxVelocity <= 0 || l.MaxAcceleration <= 0 || l.MaxJerk <= 0 {
		return errLimits
	}
	return nil
}

var errLimits = planErr("planner: max_velocity/max_acceleration/max_jerk must all be > 0")

type planErr string

func (e planErr) Error() string { return string(e) }

// Step is one cycle's output: the position, velocity, and acceleration
// setpoint, plus whether the move has completed.
type Step struct {
	Position     int32
	Velocity     float64
	Acceleration float64
	Done         bool
}

// Planner is the interface spec §9 requires so implementers can choose a
// native trajectory generator meeting this contract; SCurvePlanner is the
// bundled implementation.
type Planner interface {
	StartPosition(actualPosition int32, actualVelocity float64, targetPosition int32, limits Limits, dtS, lookaheadS float64) error
	StartVelocity(actualPosition int32, actualVelocity float64, targetVelocity float64, limits Limits, dtS, lookaheadS float64) error
	Step() (Step, bool)
	Stop()
	IsActive() bool
	LastError() error
}

type mode int

const (
	modeNone mode = iota
	modePosition
	modeVelocity
)

// SCurvePlanner is a single-axis, single-instance jerk-limited planner:
// one per slave, held as a typed struct field (not a map) in the caller's
// per-slave state, per spec §9.
type SCurvePlanner struct {
	mode mode

	pos float64 // current integrated position, pre-rebase
	vel float64
	acc float64

	targetPos float64
	targetVel float64

	limits Limits
	dtS    float64

	lookaheadS     float64
	positionOffset int64

	lastErr error
}

// StartPosition begins a position move to targetPosition: a jerk-limited
// profile that terminates at rest at the target (spec §4.4 "Position
// move"). Auto-stops (IsActive becomes false) once Step reports Done.
func (p *SCurvePlanner) StartPosition(actualPosition int32, actualVelocity float64, targetPosition int32, limits Limits, dtS, lookaheadS float64) error {
	if err := limits.validate(); err != nil {
		p.lastErr = err
		return err
	}
	*p = SCurvePlanner{
		mode:       modePosition,
		pos:        float64(actualPosition),
		vel:        actualVelocity,
		acc:        0,
		targetPos:  float64(targetPosition),
		limits:     limits,
		dtS:        positiveOr(dtS, 0.005),
		lookaheadS: positiveOr(lookaheadS, 0.5),
	}
	return nil
}

// StartVelocity begins a velocity command: the axis is driven to and held
// at targetVelocity, with its target position continuously advanced by
// velocity*lookahead seconds (spec §4.4 "Velocity command"). Never
// auto-terminates; the caller must Stop() it.
func (p *SCurvePlanner) StartVelocity(actualPosition int32, actualVelocity float64, targetVelocity float64, limits Limits, dtS, lookaheadS float64) error {
	if err := limits.validate(); err != nil {
		p.lastErr = err
		return err
	}
	la := positiveOr(lookaheadS, 0.5)
	*p = SCurvePlanner{
		mode:       modeVelocity,
		pos:        float64(actualPosition),
		vel:        actualVelocity,
		acc:        0,
		targetVel:  targetVelocity,
		targetPos:  float64(actualPosition) + targetVelocity*la,
		limits:     limits,
		dtS:        positiveOr(dtS, 0.005),
		lookaheadS: la,
	}
	return nil
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

// Stop deactivates the planner; IsActive subsequently reports false.
func (p *SCurvePlanner) Stop() {
	p.mode = modeNone
}

// IsActive reports whether a move is in progress.
func (p *SCurvePlanner) IsActive() bool { return p.mode != modeNone }

// LastError returns the reason the most recent Start* call or Step failed,
// if any; surfaced in the next status snapshot per spec §7.
func (p *SCurvePlanner) LastError() error { return p.lastErr }

// Step advances the planner by one dt and returns the new setpoint. The
// second return value mirrors original_source/ruckig_planner.py's
// "returns None if no planner active for this slave".
func (p *SCurvePlanner) Step() (Step, bool) {
	if p.mode == modeNone {
		return Step{}, false
	}

	if p.mode == modeVelocity {
		// continuously advance the lookahead target, per spec §4.4.
		p.rebaseIfNeeded()
		p.targetPos = p.pos + p.targetVel*p.lookaheadS
	}

	p.integrate()

	done := false
	if p.mode == modePosition {
		atRest := math.Abs(p.vel) < velocityEpsilon
		atTarget := math.Abs(p.targetPos-p.pos) < positionEpsilon
		done = atRest && atTarget
	}

	out := Step{
		Position:     int32(math.Round(p.pos)) + int32(p.positionOffset),
		Velocity:     p.vel,
		Acceleration: p.acc,
		Done:         done,
	}

	if done {
		// position moves auto-stop on completion, per spec §4.4.
		p.mode = modeNone
	}
	return out, true
}

const (
	velocityEpsilon = 1e-3
	positionEpsilon = 1.0
)

// rebaseIfNeeded subtracts an integer offset from the internally
// integrated position once it grows beyond rebaseThreshold, preserving
// numerical resolution during long velocity commands, per
// original_source/ruckig_planner.py's exact technique: remember the shift
// for eventual recombination on output.
func (p *SCurvePlanner) rebaseIfNeeded() {
	if math.Abs(p.pos) <= rebaseThreshold {
		return
	}
	shift := math.Round(p.pos)
	p.pos -= shift
	p.targetPos -= shift
	p.positionOffset += int64(shift)
}

// integrate advances acceleration (jerk-limited), velocity, and position
// by one dt toward whatever target the active mode has set in p.targetPos
// and (for velocity mode) p.targetVel.
func (p *SCurvePlanner) integrate() {
	var desiredVel float64
	switch p.mode {
	case modeVelocity:
		desiredVel = clamp(p.targetVel, -p.limits.MaxVelocity, p.limits.MaxVelocity)
	case modePosition:
		remaining := p.targetPos - p.pos
		// kinematic stopping distance at the current speed and max decel.
		stopDist := (p.vel * p.vel) / (2 * p.limits.MaxAcceleration)
		dir := sign(remaining)
		if math.Abs(remaining) <= stopDist+positionEpsilon {
			desiredVel = 0
		} else {
			desiredVel = dir * p.limits.MaxVelocity
		}
	}

	desiredAccel := clamp((desiredVel-p.vel)/p.dtS, -p.limits.MaxAcceleration, p.limits.MaxAcceleration)
	maxAccelDelta := p.limits.MaxJerk * p.dtS
	p.acc = clamp(desiredAccel, p.acc-maxAccelDelta, p.acc+maxAccelDelta)
	p.acc = clamp(p.acc, -p.limits.MaxAcceleration, p.limits.MaxAcceleration)

	p.vel += p.acc * p.dtS
	p.vel = clamp(p.vel, -p.limits.MaxVelocity, p.limits.MaxVelocity)

	if p.mode == modePosition {
		// never overshoot the target on the final step.
		next := p.pos + p.vel*p.dtS
		if (p.vel > 0 && next > p.targetPos) || (p.vel < 0 && next < p.targetPos) {
			p.pos = p.targetPos
			p.vel = 0
			p.acc = 0
			return
		}
	}
	p.pos += p.vel * p.dtS
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
