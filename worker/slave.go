package worker

import (
	"time"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/command"
	"github.com/gravwell/ethercat/config"
	"github.com/gravwell/ethercat/master"
	"github.com/gravwell/ethercat/motion"
	"github.com/gravwell/ethercat/pdo"
	"github.com/gravwell/ethercat/planner"
	"github.com/gravwell/ethercat/status"
)

// slaveState is the per-slave runtime state of spec §3's SlaveRuntimeState:
// an explicit typed struct (one instance per configured drive, held in a
// slice), never a string-keyed dictionary.
type slaveState struct {
	cfg config.DriveConfig
	id  master.SlaveIdentity

	pdoMap *pdo.Map

	cwOff, swOff                         pdo.Offset
	hasCW, hasSW                         bool
	modesOpOff, modesOpDisplayOff        pdo.Offset
	hasModesOp, hasModesOpDisplay        bool
	targetPosOff, targetVelOff, targetTorqueOff pdo.Offset
	hasTargetPos, hasTargetVel, hasTargetTorque bool
	posActOff, velActOff, torqueActOff   pdo.Offset
	hasPosAct, hasVelAct, hasTorqueAct   bool
	probeFnOff, probeStatusOff, probePos1Off, probePos2Off pdo.Offset
	hasProbeFn, hasProbeStatus, hasProbePos1, hasProbePos2 bool
	digitalInputsOff pdo.Offset
	hasDigitalInputs bool
	errorCodeOff     pdo.Offset
	hasErrorCode     bool

	drive   cia402.DriveState
	motion  motion.State
	planner planner.SCurvePlanner

	intent motion.Intent

	inOp             bool
	opEnteredFirst   time.Time
	opEnteredLast    time.Time
	opLeftLast       time.Time
	opDropoutCount   int

	plannerState PlannerRequest

	lastError string

	// lastPosAct/lastVelAct/lastStatusword/... are the most recently observed
	// process-image values, refreshed once per cycle after the inbound
	// frame is processed; command handlers use them to (re)initialize the
	// Planner since a command may arrive between cycles, and snapshot() uses
	// them rather than re-reading the (by-then possibly stale) image.
	lastPosAct       int32
	lastVelAct       int32
	lastStatusword   uint16
	lastModeDisplay  int32
	lastTorqueAct    int16
	lastProbePos1    int32
	lastProbePos2    int32
	lastProbeStatus  uint16
	lastDigitalInputs uint32
	lastErrorCode    uint16

	dtS float64 // cycle period in seconds, for the Planner's integration step

	// pendingRawPdoWrites are write_raw_pdo commands drained this cycle,
	// applied once the inbound image is available (spec §6). SDO traffic
	// doesn't need the image and is issued straight from RunCycle's
	// ingress drain.
	pendingRawPdoWrites []rawPdoWrite
}

// rawPdoWrite is a deferred application of a KindWriteRawPdo command
// against the registered PDO map.
type rawPdoWrite struct {
	index    uint16
	subindex uint8
	payload  []byte
}

// PlannerRequest tracks what, if anything, the Planner (C4) should be
// running for this slave this cycle.
type PlannerRequest int

const (
	PlannerRequestNone PlannerRequest = iota
	PlannerRequestPosition
	PlannerRequestVelocity
)

func newSlaveState(d config.DriveConfig) *slaveState {
	return &slaveState{
		cfg: d,
		id: master.SlaveIdentity{
			Alias:       d.Alias,
			Position:    d.Position,
			VendorID:    d.VendorID,
			ProductCode: d.ProductCode,
		},
		pdoMap: pdo.NewMap(),
	}
}

// resolveOffsets populates the has*/off* fields once the offsets table is
// built, per spec §4.1 step 4/5.
func (s *slaveState) resolveOffsets() {
	s.cwOff, s.hasCW = s.pdoMap.Lookup(cia402.IndexControlword, 0)
	s.swOff, s.hasSW = s.pdoMap.Lookup(cia402.IndexStatusword, 0)
	s.modesOpOff, s.hasModesOp = s.pdoMap.Lookup(cia402.IndexModesOp, 0)
	s.modesOpDisplayOff, s.hasModesOpDisplay = s.pdoMap.Lookup(cia402.IndexModesOpDisplay, 0)
	s.targetPosOff, s.hasTargetPos = s.pdoMap.Lookup(cia402.IndexTargetPosition, 0)
	s.targetVelOff, s.hasTargetVel = s.pdoMap.Lookup(cia402.IndexTargetVelocity, 0)
	s.targetTorqueOff, s.hasTargetTorque = s.pdoMap.Lookup(cia402.IndexTargetTorque, 0)
	s.posActOff, s.hasPosAct = s.pdoMap.Lookup(cia402.IndexPositionActual, 0)
	s.velActOff, s.hasVelAct = s.pdoMap.Lookup(cia402.IndexVelocityActual, 0)
	s.torqueActOff, s.hasTorqueAct = s.pdoMap.Lookup(cia402.IndexTorqueActual, 0)
	s.probeFnOff, s.hasProbeFn = s.pdoMap.Lookup(cia402.IndexProbeFunction, 0)
	s.probeStatusOff, s.hasProbeStatus = s.pdoMap.Lookup(cia402.IndexProbeStatus, 0)
	s.probePos1Off, s.hasProbePos1 = s.pdoMap.Lookup(cia402.IndexProbePos1, 0)
	// prefer the canonical 0x60BC probe-2 register when both are mapped,
	// per spec §9's resolved open question.
	if off, ok := s.pdoMap.Lookup(cia402.IndexProbePos2B, 0); ok {
		s.probePos2Off, s.hasProbePos2 = off, true
	} else if off, ok := s.pdoMap.Lookup(cia402.IndexProbePos2A, 0); ok {
		s.probePos2Off, s.hasProbePos2 = off, true
	}
	s.digitalInputsOff, s.hasDigitalInputs = s.pdoMap.Lookup(cia402.IndexDigitalInputs, 0)
	s.errorCodeOff, s.hasErrorCode = s.pdoMap.Lookup(cia402.IndexErrorCode, 0)
}

func (s *slaveState) motionParams(ackMask uint16, ackTimeout time.Duration) motion.Params {
	return motion.Params{
		ModeMapped:                     s.hasModesOp,
		VelocityMapped:                 s.hasTargetVel,
		TorqueMapped:                   s.hasTargetTorque,
		RequiresVelocitySetpointToggle: s.cfg.PVRequiresSetpointToggle,
		RequiresTorqueSetpointToggle:   s.cfg.PTRequiresSetpointToggle,
		AckMask:                        ackMask,
		AckTimeout:                     ackTimeout,
		MaxVelocity:                    s.cfg.MaxVelocity,
		MaxTorque:                      int16(s.cfg.MaxTorque),
		PosLimitMin:                    s.cfg.PositionLimitMin,
		PosLimitMax:                    s.cfg.PositionLimitMax,
	}
}

func (s *slaveState) snapshot() status.SlaveStatus {
	ss := status.SlaveStatus{
		Position:       s.cfg.Position,
		Statusword:     s.lastStatusword,
		Enabled:        s.drive.Enabled,
		Fault:          cia402.IsFault(s.lastStatusword),
		Warning:        cia402.IsWarning(s.lastStatusword),
		TargetReached:  cia402.IsTargetReached(s.lastStatusword),
		SetpointAcknowledged: cia402.IsSetpointAcknowledged(s.lastStatusword),
		InOp:           s.inOp,
		OpDropoutCount: s.opDropoutCount,
		PlannerError:   s.lastError,
		PdoHealthy:     make(map[uint16]bool, 8),
	}
	ss.ModeDisplay = -1 // sentinel: "unmapped"
	if s.hasModesOpDisplay {
		ss.ModeDisplay = s.lastModeDisplay
	}
	if s.hasPosAct {
		ss.PositionAct = s.lastPosAct
	}
	if s.hasVelAct {
		ss.VelocityAct = s.lastVelAct
	}
	if s.hasTorqueAct {
		ss.TorqueAct = s.lastTorqueAct
	}
	if s.hasProbePos1 {
		ss.ProbePos1 = s.lastProbePos1
	}
	if s.hasProbePos2 {
		ss.ProbePos2 = s.lastProbePos2
	}
	if s.hasProbeStatus {
		ss.ProbeValid = s.lastProbeStatus&(cia402.PSBitProbe1PosTriggered|cia402.PSBitProbe1NegTriggered) != 0
	}
	if s.hasDigitalInputs {
		ss.DigitalInputs = s.lastDigitalInputs
	}
	if s.hasErrorCode {
		ss.ErrorCode = s.lastErrorCode
	}
	if !s.planner.IsActive() {
		ss.Planner = status.PlannerIdle
	} else {
		ss.Planner = status.PlannerActive
	}
	if s.lastError != "" {
		ss.Planner = status.PlannerAborted
	}
	ss.PdoHealthy[cia402.IndexControlword] = s.hasCW
	ss.PdoHealthy[cia402.IndexStatusword] = s.hasSW
	ss.PdoHealthy[cia402.IndexTargetPosition] = s.hasTargetPos
	ss.PdoHealthy[cia402.IndexTargetVelocity] = s.hasTargetVel
	ss.PdoHealthy[cia402.IndexModesOpDisplay] = s.hasModesOpDisplay
	ss.PdoHealthy[cia402.IndexProbeStatus] = s.hasProbeStatus
	ss.PdoHealthy[cia402.IndexDigitalInputs] = s.hasDigitalInputs
	ss.PdoHealthy[cia402.IndexErrorCode] = s.hasErrorCode
	return ss
}

// applyCommand applies a drained command to the slave's intent and
// pulse/planner state. It returns true (blocked) if the command is a
// motion-affecting command that forbid_motion_commands configuration
// rejects, per spec §4.3's closing paragraph.
func (s *slaveState) applyCommand(c command.Command, forbidMotion bool) (blocked bool) {
	if forbidMotion && motion.IsMotionCommand(c.Kind) {
		return true
	}
	switch c.Kind {
	case command.KindSetMode:
		s.intent.Mode = cia402.Mode(c.Mode)
	case command.KindSetVelocity:
		s.intent.TargetVelocity = c.Velocity
	case command.KindSetPosition:
		s.intent.TargetPosition = c.Position
		s.intent.NewPositionRequest = true
	case command.KindSetPositionCSP:
		p := c.Position
		s.intent.CSPPosition = &p
	case command.KindSetTorque:
		s.intent.TargetTorque = c.Torque
	case command.KindStartHoming:
		s.intent.HomingRequest = true
	case command.KindArmProbe:
		s.intent.ProbeArm = true
		s.intent.ProbeEdge = c.ProbeEdge
		s.intent.ProbeContinuous = c.ProbeContinuous
	case command.KindDisableProbe:
		s.intent.ProbeDisarm = true
	case command.KindEnableDrive:
		s.drive.EnableRequested = true
		s.drive.ManualDisabled = false
	case command.KindDisableDrive:
		s.drive.ManualDisabled = true
	case command.KindStopMotion:
		s.intent.TargetVelocity = 0
		s.planner.Stop()
		s.plannerState = PlannerRequestNone
		s.holdOnStop()
	case command.KindClearFault:
		s.drive.FaultResetAttempts = 0
	case command.KindStartJerkMove:
		s.plannerState = PlannerRequestPosition
		lim := plannerLimits(s.cfg.Ruckig, c.JerkLimits)
		if err := s.planner.StartPosition(s.lastPosAct, float64(s.lastVelAct), c.Position, lim, s.dtS, s.cfg.Ruckig.VelocityLookaheadS); err != nil {
			s.lastError = err.Error()
			s.plannerState = PlannerRequestNone
		} else {
			s.lastError = ""
		}
	case command.KindStartJerkVelocity:
		s.plannerState = PlannerRequestVelocity
		lim := plannerLimits(s.cfg.Ruckig, c.JerkLimits)
		if err := s.planner.StartVelocity(s.lastPosAct, float64(s.lastVelAct), float64(c.Velocity), lim, s.dtS, s.cfg.Ruckig.VelocityLookaheadS); err != nil {
			s.lastError = err.Error()
			s.plannerState = PlannerRequestNone
		} else {
			s.lastError = ""
		}
	case command.KindStopJerk:
		s.planner.Stop()
		s.plannerState = PlannerRequestNone
		s.holdOnStop()
	}
	return false
}

// holdOnStop retargets CSP to the latest measured position instead of
// leaving the last commanded setpoint in place, when the drive is
// configured with hold_measured_position_on_stop (spec §3's RuckigConfig;
// CSP-only, since PP/PV/PT have no comparable "last commanded position"
// left dangling after a stop).
func (s *slaveState) holdOnStop() {
	if !s.cfg.Ruckig.HoldMeasuredPositionOnStop || s.intent.Mode != cia402.ModeCSP {
		return
	}
	pos := s.lastPosAct
	s.intent.CSPPosition = &pos
}

func plannerLimits(cfg config.RuckigConfig, override command.JerkLimits) planner.Limits {
	l := planner.Limits{MaxVelocity: cfg.MaxVelocity, MaxAcceleration: cfg.MaxAcceleration, MaxJerk: cfg.MaxJerk}
	if override.HasOverride {
		l = planner.Limits{MaxVelocity: override.MaxVelocity, MaxAcceleration: override.MaxAcceleration, MaxJerk: override.MaxJerk}
	}
	return l
}
