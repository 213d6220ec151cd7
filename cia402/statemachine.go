package cia402

import "time"

// DriveState is the per-slave CiA-402 state-machine state: spec §3's
// "state-machine" fields of SlaveRuntimeState, isolated here as the typed
// structure spec §9 requires in place of a string-keyed dictionary.
type DriveState struct {
	EnableRequested bool
	ManualDisabled  bool
	Enabled         bool

	FaultResetAttempts int
	LastActionTime      time.Time
}

// Params bundles the pacing configuration the state machine needs; these
// come from NetworkConfig so the machine itself stays a pure function of
// its state plus the observed statusword.
type Params struct {
	TransitionPacing     time.Duration // default 100ms between transitions
	FaultResetAttemptMax int           // default 10
}

// Step advances the state machine by one cycle given the currently observed
// statusword, returning the controlword to write this cycle. It implements
// the transition table of spec §4.2:
//
//	Fault                         -> 0x0080 (bounded by FaultResetAttemptMax)
//	Switch-On-Disabled (& 0x004F) -> 0x0006 (Shutdown)
//	Ready-To-Switch-On            -> 0x0007 (Switch On)
//	Switched-On                   -> 0x000F (Enable Operation)
//	Operation-Enabled              -> 0x000F (maintain); Enabled=true
//	otherwise                     -> 0x0006, no transition attempted
//
// While pacing holds back a transition, Switch-On-Disabled and
// Ready-To-Switch-On write 0x0006 and Switched-On writes 0x0007.
//
// If ManualDisabled is latched or EnableRequested is false, the controlword
// is forced to 0 and Enabled is cleared unconditionally -- this takes
// priority over every other branch.
func (s *DriveState) Step(now time.Time, statusword uint16, p Params) (controlword uint16) {
	if s.ManualDisabled || !s.EnableRequested {
		s.Enabled = false
		return CWDisableVoltage
	}

	if IsFault(statusword) {
		s.Enabled = false
		if s.FaultResetAttempts >= maxAttempts(p) {
			return CWDisableVoltage
		}
		if !s.paced(now, p) {
			return CWFaultReset
		}
		s.FaultResetAttempts++
		s.LastActionTime = now
		return CWFaultReset
	}
	// fault bit cleared: attempts reset so a later fault gets a fresh budget.
	s.FaultResetAttempts = 0

	switch statusword & SWMaskFaultSelect {
	case SWPatternSwitchOnDisabled:
		s.Enabled = false
		if s.transition(now, p) {
			return CWShutdown
		}
		return controlwordUnchanged(s)
	}

	switch statusword & SWMaskStateSelect {
	case SWPatternReadyToSwitchOn:
		s.Enabled = false
		if s.transition(now, p) {
			return CWSwitchOn
		}
		return controlwordUnchanged(s)
	case SWPatternSwitchedOn:
		s.Enabled = false
		if s.transition(now, p) {
			return CWEnableOpSimplified
		}
		// hold with Switch On; Shutdown here would drop the drive back to
		// Ready-To-Switch-On.
		return CWSwitchOn
	case SWPatternOperationEnabled:
		s.Enabled = true
		return CWEnableOpSimplified
	}
	// otherwise: no transition attempted this cycle; nothing is logged.
	return controlwordUnchanged(s)
}

func maxAttempts(p Params) int {
	if p.FaultResetAttemptMax <= 0 {
		return 10
	}
	return p.FaultResetAttemptMax
}

func pacing(p Params) time.Duration {
	if p.TransitionPacing <= 0 {
		return 100 * time.Millisecond
	}
	return p.TransitionPacing
}

// paced reports whether enough time has elapsed since LastActionTime to
// attempt another transition, and does NOT update LastActionTime itself.
func (s *DriveState) paced(now time.Time, p Params) bool {
	if s.LastActionTime.IsZero() {
		return true
	}
	return now.Sub(s.LastActionTime) >= pacing(p)
}

// transition reports whether a transition may be attempted this cycle, and
// if so stamps LastActionTime.
func (s *DriveState) transition(now time.Time, p Params) bool {
	if !s.paced(now, p) {
		return false
	}
	s.LastActionTime = now
	return true
}

// controlwordUnchanged is the hold value for Switch-On-Disabled,
// Ready-To-Switch-On and unrecognised states: Shutdown (0x0006), which in
// Ready-To-Switch-On repeats the controlword that produced that state.
// Switched-On holds with Switch On (0x0007) instead, in Step.
func controlwordUnchanged(s *DriveState) uint16 {
	return CWShutdown
}
