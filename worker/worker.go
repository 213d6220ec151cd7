// Package worker implements the Cyclic Worker (spec §4.1, §5): the
// fixed-period real-time loop that owns the master handle, drains the
// command queue, runs the Drive State Machine and Mode & Motion
// Controller, steps the Planner, exchanges frames, and publishes status.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/command"
	"github.com/gravwell/ethercat/config"
	"github.com/gravwell/ethercat/esi"
	"github.com/gravwell/ethercat/logging"
	"github.com/gravwell/ethercat/master"
	"github.com/gravwell/ethercat/pdo"
	"github.com/gravwell/ethercat/status"
	"github.com/gravwell/ethercat/transport"
)

// minShutdownCycles is spec §4.1's "over ~500ms worth of cycles (minimum
// 50)" graceful drive shutdown floor.
const minShutdownCycles = 50

// rateLimitWindow/rateLimitBurst bound how often the same noisy warning
// (a failed SDO write, a dropped motion command, a raw PDO write to an
// unmapped object) is actually written to the
// log, via github.com/joeycumines/go-catrate -- the same category-keyed,
// multi-window limiter the logiface integration in the retrieval pack
// uses to throttle its own caller-site logging.
var (
	rateLimitWindow = time.Minute
	rateLimitBurst  = 5
)

// Worker owns one EtherCAT master instance and its configured slaves.
type Worker struct {
	cfg     config.NetworkConfig
	adapter master.Adapter
	lg      *logging.Logger

	ingress *transport.Ingress
	egress  *transport.Egress

	instanceID uuid.UUID

	slaves    []*slaveState
	byPos     map[int]*slaveState

	cyclePeriod time.Duration
	jitter            *status.JitterRing
	maxJitter         time.Duration
	lastJitter        time.Duration
	deadlineMisses    uint64
	lastCycleDuration time.Duration

	activatedAt       time.Time
	firstAllInOp      bool
	allInOpAt         time.Time
	motionBlocked     uint64
	lastStatusPublish time.Time

	allInOp       bool
	domainWC      int
	domainWCState master.DomainWCState
	haveWC        bool
	minWC, maxWC  int

	nextDeadline time.Time
	haveDeadline bool

	logLimiter *catrate.Limiter

	stop chan struct{}
}

// New builds a Worker from a validated NetworkConfig.
func New(cfg config.NetworkConfig, adapter master.Adapter, lg *logging.Logger, ingress *transport.Ingress, egress *transport.Egress) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	id, err := loadOrCreateInstanceID(cfg.InstanceIDFile)
	if err != nil {
		return nil, fmt.Errorf("worker: generate instance id: %w", err)
	}

	w := &Worker{
		cfg:         cfg,
		adapter:     adapter,
		lg:          lg,
		ingress:     ingress,
		egress:      egress,
		instanceID:  id,
		byPos:       make(map[int]*slaveState),
		cyclePeriod: time.Duration(cfg.CycleTimeMs * float64(time.Millisecond)),
		jitter:      status.NewJitterRing(2000),
		logLimiter:  catrate.NewLimiter(map[time.Duration]int{rateLimitWindow: rateLimitBurst}),
		stop:        make(chan struct{}),
	}

	dtS := cfg.CycleTimeMs / 1000.0
	for _, d := range cfg.SortedDrives() {
		s := newSlaveState(d)
		s.dtS = dtS
		s.drive.EnableRequested = cfg.AutoEnable
		w.slaves = append(w.slaves, s)
		w.byPos[d.Position] = s
	}
	return w, nil
}

// DriveHandle returns a handle that enqueues commands for one slave
// position, for application callers; it carries no status reader.
func (w *Worker) DriveHandle(position int) command.DriveHandle {
	return command.NewDriveHandle(w.ingress, position)
}

// warnLimited logs msg at most rateLimitBurst times per rateLimitWindow
// per category, via github.com/joeycumines/go-catrate -- the same
// category-keyed, multi-window limiter the logiface integration in the
// retrieval pack uses to throttle its own caller-site logging. Used here
// for conditions that would otherwise repeat every single cycle (a
// failed SDO write, a dropped motion command, a raw PDO write to an
// unmapped object).
func (w *Worker) warnLimited(category string, format string, args ...interface{}) {
	if _, ok := w.logLimiter.Allow(category); !ok {
		return
	}
	w.lg.Warnf(format, args...)
}

// Startup executes the deterministic, single-shot startup sequence of
// spec §4.1.
func (w *Worker) Startup(ctx context.Context) error {
	if w.cfg.CPUCore >= 0 || w.cfg.RTPriority > 0 {
		// sched_setaffinity/sched_setscheduler apply to the calling OS
		// thread; lock this goroutine to it for the remainder of the
		// process so the cyclic loop that follows actually runs pinned.
		runtime.LockOSThread()
		if err := applyScheduling(w.cfg.CPUCore, w.cfg.RTPriority); err != nil {
			return fmt.Errorf("apply realtime scheduling: %w", err)
		}
	}
	if err := w.requestMaster(ctx); err != nil {
		return err
	}
	if err := w.adapter.CreateDomain(); err != nil {
		return fmt.Errorf("create domain: %w", err)
	}

	referenceClockSet := false
	for _, s := range w.slaves {
		if err := w.adapter.ConfigureSlave(s.id); err != nil {
			return fmt.Errorf("configure slave %d: %w", s.cfg.Position, err)
		}
		for _, sw := range s.cfg.StartupSdo {
			if err := w.adapter.SdoDownload(s.cfg.Position, sw.Index, sw.Subindex, sw.Value); err != nil {
				return fmt.Errorf("slave %d startup sdo 0x%04x:%d: %w", s.cfg.Position, sw.Index, sw.Subindex, err)
			}
		}
		// Profile velocity/acceleration (0x6081/0x6083) are PP/HM motion-
		// envelope defaults, not required to be PDO-mapped (spec §6's
		// required-register list omits them), so they're pushed once here.
		if s.cfg.ProfileVelocity != 0 {
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexProfileVelocity, 0, u32Bytes(uint32(s.cfg.ProfileVelocity))); err != nil {
				return fmt.Errorf("slave %d: write profile velocity: %w", s.cfg.Position, err)
			}
		}
		if s.cfg.ProfileAcceleration != 0 {
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexProfileAcceleration, 0, u32Bytes(s.cfg.ProfileAcceleration)); err != nil {
				return fmt.Errorf("slave %d: write profile acceleration: %w", s.cfg.Position, err)
			}
		}
		// Homing method 0 means "not configured" (CiA-402 also defines it as
		// "no homing operation required"), so a zero method skips the whole
		// block rather than arming an unintended homing run.
		if s.cfg.Homing.Method != 0 {
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexHomingMethod, 0, []byte{byte(s.cfg.Homing.Method)}); err != nil {
				return fmt.Errorf("slave %d: write homing method: %w", s.cfg.Position, err)
			}
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexHomingSpeeds, 1, u32Bytes(uint32(s.cfg.Homing.SearchVel))); err != nil {
				return fmt.Errorf("slave %d: write homing search speed: %w", s.cfg.Position, err)
			}
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexHomingSpeeds, 2, u32Bytes(uint32(s.cfg.Homing.ZeroVel))); err != nil {
				return fmt.Errorf("slave %d: write homing zero speed: %w", s.cfg.Position, err)
			}
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexHomingAcceleration, 0, u32Bytes(s.cfg.Homing.Accel)); err != nil {
				return fmt.Errorf("slave %d: write homing acceleration: %w", s.cfg.Position, err)
			}
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexHomeOffset, 0, i32Bytes(s.cfg.Homing.Offset)); err != nil {
				return fmt.Errorf("slave %d: write home offset: %w", s.cfg.Position, err)
			}
		}

		entries, err := w.resolvePdoEntries(s)
		if err != nil {
			return fmt.Errorf("slave %d: resolve pdo mapping: %w", s.cfg.Position, err)
		}
		offsets, err := w.adapter.RegisterPdoEntries(s.id, entries)
		if err != nil {
			return fmt.Errorf("slave %d: register pdo entries: %w", s.cfg.Position, err)
		}
		for _, o := range offsets {
			s.pdoMap.Register(o.Index, o.Subindex, o.ByteOffset, o.BitLength)
		}
		s.resolveOffsets()

		if !s.hasCW || !s.hasSW {
			return fmt.Errorf("slave %d: controlword and statusword must both be mapped (CiA-402 requirement)", s.cfg.Position)
		}

		if s.cfg.EnableDC {
			dc := master.DCConfig{
				AssignActivate:   s.cfg.DCAssignActivate,
				Sync0CycleTimeNs: s.cfg.DCSync0CycleTimeNs,
				Sync0ShiftNs:     s.cfg.DCSync0ShiftNs,
				Sync1CycleTimeNs: s.cfg.DCSync1CycleTimeNs,
				Sync1ShiftNs:     s.cfg.DCSync1ShiftNs,
			}
			if err := w.adapter.ConfigureDC(s.id, dc); err != nil {
				return fmt.Errorf("slave %d: configure distributed clocks: %w", s.cfg.Position, err)
			}
			if !referenceClockSet {
				if err := w.adapter.SelectReferenceClock(s.id); err != nil {
					return fmt.Errorf("slave %d: select reference clock: %w", s.cfg.Position, err)
				}
				referenceClockSet = true
			}
		}
	}

	w.adapter.SetApplicationTime(0)
	for _, s := range w.slaves {
		s.intent.Mode = cia402.Mode(s.cfg.OperationMode)
		if !s.hasModesOp {
			if err := w.adapter.SdoDownload(s.cfg.Position, cia402.IndexModesOp, 0, []byte{byte(s.cfg.OperationMode)}); err != nil {
				return fmt.Errorf("slave %d: write initial mode: %w", s.cfg.Position, err)
			}
		}
	}

	if err := w.adapter.Activate(); err != nil {
		return fmt.Errorf("activate master: %w", err)
	}
	w.activatedAt = time.Now()
	return nil
}

func (w *Worker) requestMaster(ctx context.Context) error {
	err := w.adapter.Request(ctx, false)
	if err == nil {
		return nil
	}
	if !w.cfg.ForceReleaseMasterOnStartup {
		return fmt.Errorf("request master: %w", err)
	}
	relErr := master.ReleaseBusyDevice(master.ReleaseConfig{
		DevicePath:   w.cfg.Interface,
		SigtermFirst: w.cfg.ForceReleaseSigtermFirst,
		Retries:      w.cfg.ForceReleaseRetries,
		Delay:        w.cfg.ForceReleaseDelay,
	}, w.lg)
	if relErr != nil {
		return fmt.Errorf("request master: %w (preflight release: %v)", err, relErr)
	}
	if err := w.adapter.Request(ctx, false); err != nil {
		return fmt.Errorf("request master after preflight release: %w", err)
	}
	return nil
}

// resolvePdoEntries returns the registration list for one slave: the
// configured custom selection if CustomPdoConfig replaces the ESI-derived
// mapping, or the ESI-decoded mapping otherwise (spec §4.1 step 3).
func (w *Worker) resolvePdoEntries(s *slaveState) ([]master.PdoEntryReg, error) {
	if s.cfg.Pdo.CustomPdoConfig {
		return toRegs(s.cfg.Pdo.RxPdos, s.cfg.Pdo.TxPdos), nil
	}
	if s.cfg.ESIPath == "" {
		return nil, fmt.Errorf("no esi path and no custom pdo config")
	}
	desc, err := esi.Decode(s.cfg.ESIPath, s.cfg.VendorID, s.cfg.ProductCode, 0)
	if err != nil {
		return nil, err
	}
	rx := make([]config.PdoEntry, len(desc.RxEntries))
	for i, e := range desc.RxEntries {
		rx[i] = config.PdoEntry{Index: e.Index, Subindex: e.Subindex, BitLength: e.BitLength}
	}
	tx := make([]config.PdoEntry, len(desc.TxEntries))
	for i, e := range desc.TxEntries {
		tx[i] = config.PdoEntry{Index: e.Index, Subindex: e.Subindex, BitLength: e.BitLength}
	}
	return toRegs(rx, tx), nil
}

func toRegs(rx, tx []config.PdoEntry) []master.PdoEntryReg {
	out := make([]master.PdoEntryReg, 0, len(rx)+len(tx))
	for _, e := range rx {
		out = append(out, master.PdoEntryReg{Index: e.Index, Subindex: e.Subindex, BitLength: e.BitLength})
	}
	for _, e := range tx {
		out = append(out, master.PdoEntryReg{Index: e.Index, Subindex: e.Subindex, BitLength: e.BitLength})
	}
	return out
}

// Run executes cycles until ctx is cancelled or a fatal error occurs,
// then performs the graceful drive shutdown sequence.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Startup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.cyclePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-w.stop:
			return w.shutdown()
		case now := <-ticker.C:
			if err := w.RunCycle(now); err != nil {
				return err
			}
		}
	}
}

// Stop requests cooperative termination; Run will perform the graceful
// shutdown sequence and return.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// RunCycle executes exactly one cycle body (spec §4.1), using now as the
// cycle's wall-clock start. Exposed directly so tests can drive the
// worker without real-time sleeping.
func (w *Worker) RunCycle(now time.Time) error {
	w.accountTiming(now)

	var blocked uint64
	if err := w.ingress.Drain(0, func(c command.Command) {
		s, ok := w.byPos[c.Slave]
		if !ok {
			return
		}
		switch c.Kind {
		case command.KindWriteRawPdo:
			s.pendingRawPdoWrites = append(s.pendingRawPdoWrites, rawPdoWrite{index: c.Index, subindex: c.Subindex, payload: c.Payload})
		case command.KindWriteSdo:
			if err := w.adapter.SdoDownload(s.cfg.Position, c.Index, c.Subindex, c.Payload); err != nil {
				w.warnLimited("sdo-write", "slave %d: SDO write 0x%04x:%d failed: %v", s.cfg.Position, c.Index, c.Subindex, err)
			}
		case command.KindReadSdo:
			data, err := w.adapter.SdoUpload(s.cfg.Position, c.Index, c.Subindex, 64)
			if c.ReadResult != nil {
				select {
				case c.ReadResult <- command.SdoResult{Value: data, Err: err}:
				default:
				}
			}
		default:
			if s.applyCommand(c, w.cfg.ForbidMotionCommands) {
				blocked++
			}
		}
	}); err != nil {
		return fmt.Errorf("drain ingress: %w", err)
	}
	w.motionBlocked += blocked
	if blocked > 0 {
		w.warnLimited("motion-blocked", "dropped %d motion command(s): forbid_motion_commands is set", blocked)
	}

	if err := w.adapter.Receive(); err != nil {
		return fmt.Errorf("receive frame: %w", err)
	}
	if err := w.adapter.ProcessDomain(); err != nil {
		return fmt.Errorf("process domain: %w", err)
	}
	img := w.adapter.DomainImage()

	for _, s := range w.slaves {
		for _, rw := range s.pendingRawPdoWrites {
			if off, ok := s.pdoMap.Lookup(rw.index, rw.subindex); ok {
				pdo.WriteBytes(img, off, rw.payload)
			} else {
				w.warnLimited("raw-pdo-write", "slave %d: 0x%04x:%d not in PDO map", s.cfg.Position, rw.index, rw.subindex)
			}
		}
		s.pendingRawPdoWrites = nil
	}

	allInOp := true
	for _, s := range w.slaves {
		st := w.adapter.GetSlaveState(s.cfg.Position)
		inOp := st == master.StateOp
		if inOp && !s.inOp {
			if s.opEnteredFirst.IsZero() {
				s.opEnteredFirst = now
			}
			s.opEnteredLast = now
		}
		if !inOp && s.inOp {
			s.drive.Enabled = false
			s.motion.ResetOnOpDropout()
			s.opDropoutCount++
			s.opLeftLast = now
		}
		s.inOp = inOp
		if !inOp {
			allInOp = false
		}

		if s.hasPosAct {
			s.lastPosAct = img32(img, s)
		}
		if s.hasVelAct {
			s.lastVelAct = pdo.ReadI32(img, s.velActOff)
		}
		if s.hasSW {
			s.lastStatusword = pdo.ReadU16(img, s.swOff)
		}
		if s.hasModesOpDisplay {
			s.lastModeDisplay = pdo.ReadI32(img, s.modesOpDisplayOff)
		}
		if s.hasTorqueAct {
			s.lastTorqueAct = pdo.ReadI16(img, s.torqueActOff)
		}
		if s.hasProbePos1 {
			s.lastProbePos1 = pdo.ReadI32(img, s.probePos1Off)
		}
		if s.hasProbePos2 {
			s.lastProbePos2 = pdo.ReadI32(img, s.probePos2Off)
		}
		if s.hasProbeStatus {
			s.lastProbeStatus = pdo.ReadU16(img, s.probeStatusOff)
		}
		if s.hasDigitalInputs {
			s.lastDigitalInputs = pdo.ReadU32(img, s.digitalInputsOff)
		}
		if s.hasErrorCode {
			s.lastErrorCode = pdo.ReadU16(img, s.errorCodeOff)
		}
	}

	if !w.firstAllInOp {
		if allInOp {
			w.firstAllInOp = true
			w.allInOpAt = now
		} else if now.Sub(w.activatedAt) > w.cfg.OpTimeout {
			return fmt.Errorf("fatal: not all slaves reached OP within %s of activation", w.cfg.OpTimeout)
		}
	}

	w.allInOp = allInOp
	w.domainWC, w.domainWCState = w.adapter.DomainState()
	if !w.haveWC {
		w.haveWC = true
		w.minWC, w.maxWC = w.domainWC, w.domainWC
	} else {
		if w.domainWC < w.minWC {
			w.minWC = w.domainWC
		}
		if w.domainWC > w.maxWC {
			w.maxWC = w.domainWC
		}
	}

	for _, s := range w.slaves {
		if !s.inOp {
			continue
		}

		if w.cfg.AutoEnable {
			s.drive.EnableRequested = true
		}
		cw := s.drive.Step(now, s.lastStatusword, cia402.Params{
			TransitionPacing:     w.cfg.EnableTransitionPeriod,
			FaultResetAttemptMax: w.cfg.FaultResetAttemptMax,
		})

		w.stepPlanner(s)

		if s.hasPosAct {
			s.motion.SeedCSP(s.lastPosAct)
		}
		out := s.motion.Apply(now, s.lastStatusword, s.intent, s.motionParams(w.cfg.PPAckMask, w.cfg.PPAckTimeout))
		s.intent.NewPositionRequest = false
		s.intent.HomingRequest = false
		s.intent.CSPPosition = nil
		s.intent.ProbeArm = false
		s.intent.ProbeDisarm = false

		// A manually-disabled or not-yet-enabled drive gets only the
		// state-machine controlword (forced to 0x0000 by DriveState.Step in
		// that case); no motion controlword bit and no target register may
		// be written, or the drive would actuate against operator intent.
		finalCW := cw
		if s.drive.Enabled && !s.drive.ManualDisabled {
			finalCW |= out.ControlwordBits

			if out.WriteModeNow && s.hasModesOp {
				writeModeAt(img, s.modesOpOff, out.ModeByte)
			} else if out.ModeChanged {
				_ = w.adapter.SdoDownload(s.cfg.Position, cia402.IndexModesOp, 0, []byte{byte(out.ModeByte)})
			}

			if out.WriteTargetPosition && s.hasTargetPos {
				pdo.WriteI32(img, s.targetPosOff, out.TargetPosition)
			}
			if out.WriteTargetVelocity {
				if s.hasTargetVel {
					pdo.WriteI32(img, s.targetVelOff, out.TargetVelocity)
				} else if out.VelocityChanged {
					_ = w.adapter.SdoDownload(s.cfg.Position, cia402.IndexTargetVelocity, 0, i32Bytes(out.TargetVelocity))
				}
			}
			if out.WriteTargetTorque {
				if s.hasTargetTorque {
					pdo.WriteI16(img, s.targetTorqueOff, out.TargetTorque)
				} else if out.TorqueChanged {
					_ = w.adapter.SdoDownload(s.cfg.Position, cia402.IndexTargetTorque, 0, i16Bytes(out.TargetTorque))
				}
			}
			if out.WriteProbeFunction {
				if s.hasProbeFn {
					pdo.WriteU16(img, s.probeFnOff, out.ProbeFunctionValue)
				} else {
					_ = w.adapter.SdoDownload(s.cfg.Position, cia402.IndexProbeFunction, 0, u16Bytes(out.ProbeFunctionValue))
				}
			}
		}
		pdo.WriteU16(img, s.cwOff, finalCW)
	}

	w.adapter.SetApplicationTime(now.UnixNano())

	if err := w.adapter.QueueDomain(); err != nil {
		return fmt.Errorf("queue domain: %w", err)
	}
	if err := w.adapter.Send(); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}

	if w.lastStatusPublish.IsZero() || now.Sub(w.lastStatusPublish) >= w.cfg.StatusPublishInterval {
		w.egress.Publish(w.buildSnapshot(now))
		w.lastStatusPublish = now
	}

	return nil
}

// stepPlanner steps the Planner (C4) for the slave if it has an active
// request, writing the result into the CSP intent. Safety per spec §4.4:
// never runs while disabled, while actual position/velocity are unmapped,
// or when CSP is not selected.
func (w *Worker) stepPlanner(s *slaveState) {
	if s.plannerState == PlannerRequestNone || !s.planner.IsActive() {
		return
	}
	if !s.drive.Enabled || !s.hasPosAct || !s.hasVelAct || s.intent.Mode != cia402.ModeCSP {
		s.planner.Stop()
		s.plannerState = PlannerRequestNone
		return
	}
	step, active := s.planner.Step()
	if !active {
		s.plannerState = PlannerRequestNone
		return
	}
	if err := s.planner.LastError(); err != nil {
		s.lastError = err.Error()
		s.plannerState = PlannerRequestNone
		return
	}
	pos := step.Position
	s.intent.CSPPosition = &pos
	if step.Done {
		s.plannerState = PlannerRequestNone
	}
}

func (w *Worker) accountTiming(now time.Time) {
	if !w.haveDeadline {
		w.nextDeadline = now.Add(w.cyclePeriod)
		w.haveDeadline = true
		return
	}
	jitter := now.Sub(w.nextDeadline)
	w.lastCycleDuration = w.cyclePeriod + jitter
	w.lastJitter = jitter
	w.jitter.Add(jitter)
	if jitter > w.maxJitter {
		w.maxJitter = jitter
	}
	if now.After(w.nextDeadline) {
		w.deadlineMisses++
	}
	next := w.nextDeadline.Add(w.cyclePeriod)
	if !next.After(now) {
		// the schedule has fallen too far behind to catch up; resync the
		// base timebase instead of trying to burn through missed cycles.
		next = now.Add(w.cyclePeriod)
	}
	w.nextDeadline = next
}

// domainStateLabel reports "OP" only while every configured slave is in Op
// and the domain working counter is complete; anything else (a dropout, a
// not-yet-converged startup) surfaces the adapter's own wc_state label so
// the field stops lying during a bus dropout (spec §8 scenario 5).
func (w *Worker) domainStateLabel() string {
	if w.allInOp && w.domainWCState == master.WCComplete {
		return "OP"
	}
	return w.domainWCState.String()
}

func (w *Worker) buildSnapshot(now time.Time) status.Snapshot {
	slaves := make(map[int]status.SlaveStatus, len(w.slaves))
	for _, s := range w.slaves {
		slaves[s.cfg.Position] = s.snapshot()
	}
	return status.Snapshot{
		InstanceID:            w.instanceID,
		Timestamp:             now,
		ConfiguredCyclePeriod: w.cyclePeriod,
		LastCycleDuration:     w.lastCycleDuration,
		LastJitter:            w.lastJitter,
		MaxJitter:             w.maxJitter,
		JitterP95:             w.jitter.Percentile(95),
		JitterP99:             w.jitter.Percentile(99),
		JitterP999:            w.jitter.Percentile(99.9),
		DeadlineMisses:        w.deadlineMisses,
		DomainWorkingCounter:  w.domainWC,
		DomainState:           w.domainStateLabel(),
		MinWorkingCounter:     w.minWC,
		MaxWorkingCounter:     w.maxWC,
		MotionCommandsBlocked: w.motionBlocked,
		Slaves:                slaves,
	}
}

// shutdown performs the graceful drive shutdown of spec §4.1: over at
// least minShutdownCycles cycles, hold position, zero velocity, clear the
// controlword, and keep exchanging frames before releasing the master.
func (w *Worker) shutdown() error {
	for i := 0; i < minShutdownCycles; i++ {
		img := w.adapter.DomainImage()
		for _, s := range w.slaves {
			pdo.WriteU16(img, s.cwOff, cia402.CWDisableVoltage)
			if s.hasTargetVel {
				pdo.WriteI32(img, s.targetVelOff, 0)
			}
			if s.hasTargetPos {
				pdo.WriteI32(img, s.targetPosOff, s.lastPosAct)
			}
		}
		_ = w.adapter.QueueDomain()
		_ = w.adapter.Send()
		_ = w.adapter.Receive()
		_ = w.adapter.ProcessDomain()
		time.Sleep(w.cyclePeriod)
	}
	if err := w.adapter.Deactivate(); err != nil {
		return fmt.Errorf("deactivate master: %w", err)
	}
	if err := w.adapter.Release(); err != nil {
		return fmt.Errorf("release master: %w", err)
	}
	return nil
}

func img32(img []byte, s *slaveState) int32 {
	if !s.hasPosAct {
		return 0
	}
	return pdo.ReadI32(img, s.posActOff)
}
