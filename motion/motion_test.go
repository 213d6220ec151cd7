package motion

import (
	"testing"
	"time"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/command"
)

func TestPPAssertsSetpointOnNewRequest(t *testing.T) {
	var s State
	p := Params{AckMask: cia402.SWBitSetpointAcknowledged, AckTimeout: 100 * time.Millisecond}
	now := time.Now()

	out := s.Apply(now, 0, Intent{Mode: cia402.ModePP, TargetPosition: 1000, NewPositionRequest: true}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint == 0 {
		t.Fatalf("expected new-set-point bit asserted on fresh request")
	}

	// ack observed next cycle clears the bit.
	out = s.Apply(now.Add(time.Millisecond), cia402.SWBitSetpointAcknowledged, Intent{Mode: cia402.ModePP, TargetPosition: 1000}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint != 0 {
		t.Fatalf("expected bit cleared after ack")
	}
}

func TestPPTimeoutClearsSetpointBit(t *testing.T) {
	var s State
	p := Params{AckMask: cia402.SWBitSetpointAcknowledged, AckTimeout: 10 * time.Millisecond}
	now := time.Now()

	s.Apply(now, 0, Intent{Mode: cia402.ModePP, TargetPosition: 1000, NewPositionRequest: true}, p)
	out := s.Apply(now.Add(50*time.Millisecond), 0, Intent{Mode: cia402.ModePP, TargetPosition: 1000}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint != 0 {
		t.Fatalf("expected bit cleared after timeout even without ack")
	}
}

func TestPPForcesCleanEdgeOnReRequestWhileActive(t *testing.T) {
	var s State
	p := Params{AckMask: cia402.SWBitSetpointAcknowledged, AckTimeout: time.Second}
	now := time.Now()

	out := s.Apply(now, 0, Intent{Mode: cia402.ModePP, TargetPosition: 1000, NewPositionRequest: true}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint == 0 {
		t.Fatalf("expected first pulse asserted")
	}

	// new request arrives while the previous pulse is still active: next
	// cycle must force a cleared edge before reasserting.
	out = s.Apply(now.Add(time.Millisecond), 0, Intent{Mode: cia402.ModePP, TargetPosition: 2000, NewPositionRequest: true}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint != 0 {
		t.Fatalf("expected forced cleared cycle, got bit still asserted")
	}

	out = s.Apply(now.Add(2*time.Millisecond), 0, Intent{Mode: cia402.ModePP, TargetPosition: 2000}, p)
	if out.ControlwordBits&cia402.CWBitNewSetPoint == 0 {
		t.Fatalf("expected re-assertion after the forced cleared cycle")
	}
}

func TestCSPSeedsWithNoOpOnFirstCycle(t *testing.T) {
	var s State
	s.SeedCSP(4242)
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModeCSP}, Params{})
	if !out.WriteTargetPosition {
		t.Fatalf("expected the seeded position written on the no-op first CSP cycle")
	}
	if out.TargetPosition != 4242 {
		t.Fatalf("expected seeded position 4242, got %d", out.TargetPosition)
	}
}

func TestCSPAppliesNewSetpoint(t *testing.T) {
	var s State
	s.SeedCSP(0)
	next := int32(777)
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModeCSP, CSPPosition: &next}, Params{})
	if !out.WriteTargetPosition || out.TargetPosition != 777 {
		t.Fatalf("expected target position 777 written, got %+v", out)
	}
}

func TestVelocityClamped(t *testing.T) {
	var s State
	p := Params{MaxVelocity: 500, VelocityMapped: true}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePV, TargetVelocity: 5000}, p)
	if out.TargetVelocity != 500 {
		t.Fatalf("expected velocity clamped to 500, got %d", out.TargetVelocity)
	}
	out = s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePV, TargetVelocity: -5000}, p)
	if out.TargetVelocity != -500 {
		t.Fatalf("expected velocity clamped to -500, got %d", out.TargetVelocity)
	}
}

func TestTorqueModeForcesZeroVelocity(t *testing.T) {
	var s State
	p := Params{MaxTorque: 1000, TorqueMapped: true, VelocityMapped: true}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePT, TargetTorque: 200}, p)
	if out.TargetVelocity != 0 || !out.WriteTargetVelocity {
		t.Fatalf("expected velocity forced to 0 and written in torque mode, got %+v", out)
	}
	if out.TargetTorque != 200 {
		t.Fatalf("expected torque 200, got %d", out.TargetTorque)
	}
}

func TestModeWrittenEveryCycleWhenMapped(t *testing.T) {
	var s State
	p := Params{ModeMapped: true}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePP}, p)
	if !out.WriteModeNow {
		t.Fatalf("expected mode written every cycle when mapped")
	}
}

func TestModeServiceChannelDedup(t *testing.T) {
	var s State
	p := Params{ModeMapped: false}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePP}, p)
	if !out.ModeChanged {
		t.Fatalf("expected first mode write to be flagged changed")
	}
	out = s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePP}, p)
	if out.ModeChanged {
		t.Fatalf("expected no change flagged when mode repeats and is unmapped")
	}
}

func TestPPClampsToConfiguredPositionLimits(t *testing.T) {
	var s State
	p := Params{PosLimitMin: -1000, PosLimitMax: 1000}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePP, TargetPosition: 5000, NewPositionRequest: true}, p)
	if out.TargetPosition != 1000 {
		t.Fatalf("expected target position clamped to 1000, got %d", out.TargetPosition)
	}
}

func TestCSPClampsToConfiguredPositionLimits(t *testing.T) {
	var s State
	p := Params{PosLimitMin: -1000, PosLimitMax: 1000}
	next := int32(-5000)
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModeCSP, CSPPosition: &next}, p)
	if out.TargetPosition != -1000 {
		t.Fatalf("expected csp target clamped to -1000, got %d", out.TargetPosition)
	}
}

func TestPositionLimitsUnsetWhenBothZero(t *testing.T) {
	var s State
	p := Params{}
	out := s.Apply(time.Now(), 0, Intent{Mode: cia402.ModePP, TargetPosition: 123456, NewPositionRequest: true}, p)
	if out.TargetPosition != 123456 {
		t.Fatalf("expected no clamping when limits unset, got %d", out.TargetPosition)
	}
}

func TestProbeArmPositiveEdgeWritesEnableAndEdgeBits(t *testing.T) {
	var s State
	out := s.Apply(time.Now(), 0, Intent{ProbeArm: true, ProbeEdge: command.ProbeEdgePositive}, Params{})
	if !out.WriteProbeFunction {
		t.Fatalf("expected probe function write")
	}
	if out.ProbeFunctionValue != cia402.PFBitEnableProbe1|cia402.PFBitProbe1PosEdge {
		t.Fatalf("expected enable+pos-edge bits, got 0x%04x", out.ProbeFunctionValue)
	}
}

func TestProbeArmNegativeEdgeWritesEnableAndEdgeBits(t *testing.T) {
	var s State
	out := s.Apply(time.Now(), 0, Intent{ProbeArm: true, ProbeEdge: command.ProbeEdgeNegative}, Params{})
	if out.ProbeFunctionValue != cia402.PFBitEnableProbe1|cia402.PFBitProbe1NegEdge {
		t.Fatalf("expected enable+neg-edge bits, got 0x%04x", out.ProbeFunctionValue)
	}
}

func TestProbeDisarmWritesZero(t *testing.T) {
	var s State
	out := s.Apply(time.Now(), 0, Intent{ProbeDisarm: true}, Params{})
	if !out.WriteProbeFunction || out.ProbeFunctionValue != 0 {
		t.Fatalf("expected a zero-value probe function write, got %+v", out)
	}
}

func TestIsMotionCommand(t *testing.T) {
	if !IsMotionCommand(command.KindSetVelocity) {
		t.Fatalf("expected SetVelocity to be a motion command")
	}
	if IsMotionCommand(command.KindReadSdo) {
		t.Fatalf("expected ReadSdo to not be a motion command")
	}
}
