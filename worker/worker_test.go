package worker

import (
	"context"
	"testing"
	"time"

	"github.com/gravwell/ethercat/cia402"
	"github.com/gravwell/ethercat/command"
	"github.com/gravwell/ethercat/config"
	"github.com/gravwell/ethercat/logging"
	"github.com/gravwell/ethercat/master"
	"github.com/gravwell/ethercat/pdo"
	"github.com/gravwell/ethercat/transport"
)

func testConfig() config.NetworkConfig {
	cfg := config.DefaultNetworkConfig()
	cfg.Interface = "sim0"
	cfg.CycleTimeMs = 5
	cfg.AutoEnable = true
	cfg.PPAckMask = cia402.SWBitSetpointAcknowledged
	cfg.Drives = []config.DriveConfig{
		{
			Position:      0,
			VendorID:      1,
			ProductCode:   1,
			OperationMode: int(cia402.ModeCSP),
			MaxVelocity:   10000,
			MaxTorque:     1000,
			Pdo: config.PdoSelection{
				CustomPdoConfig: true,
				RxPdos: []config.PdoEntry{
					{Index: cia402.IndexControlword, BitLength: 16},
					{Index: cia402.IndexTargetPosition, BitLength: 32},
					{Index: cia402.IndexModesOp, BitLength: 8},
				},
				TxPdos: []config.PdoEntry{
					{Index: cia402.IndexStatusword, BitLength: 16},
					{Index: cia402.IndexPositionActual, BitLength: 32},
				},
			},
		},
	}
	return cfg
}

func newTestWorker(t *testing.T) (*Worker, *master.SimAdapter) {
	t.Helper()
	cfg := testConfig()
	adapter := master.NewSimAdapter(0)
	lg := logging.NewDiscardLogger()
	ingress := transport.NewIngress(16)
	egress := transport.NewEgress()

	w, err := New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	return w, adapter
}

// runUntilEnabled pumps RunCycle forward (manufactured timestamps, no real
// sleeping) until the sole configured slave reaches Operation Enabled or
// the cycle budget is exhausted.
func runUntilEnabled(t *testing.T, w *Worker, maxCycles int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < maxCycles; i++ {
		now = now.Add(w.cyclePeriod)
		if err := w.RunCycle(now); err != nil {
			t.Fatalf("RunCycle: %v", err)
		}
		if w.slaves[0].drive.Enabled {
			return
		}
	}
	t.Fatalf("drive never reached Operation Enabled within %d cycles", maxCycles)
}

func TestWorkerReachesOperationEnabled(t *testing.T) {
	w, _ := newTestWorker(t)
	runUntilEnabled(t, w, 50)
	if !w.slaves[0].inOp {
		t.Fatalf("expected slave to report in_op")
	}
}

func TestWorkerCSPFirstCycleIsNoOpThenAppliesSetpoint(t *testing.T) {
	w, adapter := newTestWorker(t)
	runUntilEnabled(t, w, 50)

	s := w.slaves[0]
	startPos := s.lastPosAct
	if got := pdo.ReadI32(adapter.DomainImage(), s.targetPosOff); got != startPos {
		t.Fatalf("expected seeded no-op target %d on the first enabled cycle, got %d", startPos, got)
	}

	handle := w.DriveHandle(0)
	if !handle.SetPositionCSP(startPos + 1000) {
		t.Fatalf("expected command accepted")
	}

	now := time.Now()
	if err := w.RunCycle(now); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	got := pdo.ReadI32(adapter.DomainImage(), s.targetPosOff)
	if want := startPos + 1000; got != want {
		t.Fatalf("expected target position %d written, got %d", want, got)
	}
}

func TestManualDisableForcesZeroControlwordAndLeavesTargetUntouched(t *testing.T) {
	w, adapter := newTestWorker(t)
	runUntilEnabled(t, w, 50)

	s := w.slaves[0]
	startPos := s.lastPosAct
	before := pdo.ReadI32(adapter.DomainImage(), s.targetPosOff)

	handle := w.DriveHandle(0)
	if !handle.DisableDrive() {
		t.Fatalf("expected disable command accepted")
	}
	if !handle.SetPositionCSP(startPos + 1000) {
		t.Fatalf("expected position command accepted")
	}

	now := time.Now()
	if err := w.RunCycle(now); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if s.drive.Enabled {
		t.Fatalf("expected drive to report disabled")
	}
	if got := pdo.ReadU16(adapter.DomainImage(), s.cwOff); got != cia402.CWDisableVoltage {
		t.Fatalf("expected controlword 0x0000 while manually disabled, got 0x%04x", got)
	}
	if got := pdo.ReadI32(adapter.DomainImage(), s.targetPosOff); got != before {
		t.Fatalf("expected target position register untouched while disabled: before=%d got=%d", before, got)
	}
}

func TestWorkerForbidsMotionCommandsWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.ForbidMotionCommands = true
	adapter := master.NewSimAdapter(0)
	lg := logging.NewDiscardLogger()
	ingress := transport.NewIngress(16)
	egress := transport.NewEgress()

	w, err := New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	handle := w.DriveHandle(0)
	handle.SetVelocity(500)

	now := time.Now().Add(w.cyclePeriod)
	if err := w.RunCycle(now); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if w.motionBlocked != 1 {
		t.Fatalf("expected one motion command blocked, got %d", w.motionBlocked)
	}
}

func TestStopMotionZeroesVelocityAndClearsPlanner(t *testing.T) {
	s := newSlaveState(config.DriveConfig{Ruckig: config.RuckigConfig{MaxVelocity: 1, MaxAcceleration: 1, MaxJerk: 1, VelocityLookaheadS: 0.5}})
	s.intent.TargetVelocity = 1234
	if err := s.planner.StartVelocity(0, 0, 100, plannerLimits(s.cfg.Ruckig, command.JerkLimits{}), 0.005, 0.5); err != nil {
		t.Fatalf("StartVelocity: %v", err)
	}
	s.plannerState = PlannerRequestVelocity

	s.applyCommand(command.Command{Kind: command.KindStopMotion}, false)

	if s.intent.TargetVelocity != 0 {
		t.Fatalf("expected target velocity zeroed, got %d", s.intent.TargetVelocity)
	}
	if s.planner.IsActive() {
		t.Fatalf("expected planner stopped")
	}
	if s.plannerState != PlannerRequestNone {
		t.Fatalf("expected planner request cleared")
	}

	// repeated stop_motion is idempotent.
	s.applyCommand(command.Command{Kind: command.KindStopMotion}, false)
	if s.intent.TargetVelocity != 0 || s.planner.IsActive() {
		t.Fatalf("expected repeated stop_motion to remain at rest")
	}
}

func TestWriteRawPdoWritesRegisteredOffset(t *testing.T) {
	// MaxTorque (0x6072) is registered here as a custom RxPdo entry but the
	// motion controller never writes it (it's only a clamp parameter), so a
	// raw write to it survives the cycle that applies it, unlike a
	// CSP-mapped register the controller rewrites every cycle.
	cfg := testConfig()
	cfg.Drives[0].Pdo.RxPdos = append(cfg.Drives[0].Pdo.RxPdos, config.PdoEntry{Index: cia402.IndexMaxTorque, BitLength: 16})
	adapter := master.NewSimAdapter(0)
	lg := logging.NewDiscardLogger()
	ingress := transport.NewIngress(16)
	egress := transport.NewEgress()

	w, err := New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	runUntilEnabled(t, w, 50)

	s := w.slaves[0]
	off, ok := s.pdoMap.Lookup(cia402.IndexMaxTorque, 0)
	if !ok {
		t.Fatalf("expected max torque registered in pdo map")
	}

	handle := w.DriveHandle(0)
	payload := []byte{0x11, 0x22}
	if !handle.WriteRawPdo(cia402.IndexMaxTorque, 0, payload) {
		t.Fatalf("expected command accepted")
	}

	if err := w.RunCycle(time.Now()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	got := pdo.ReadBytes(adapter.DomainImage(), off)
	for i, b := range payload {
		if got[i] != b {
			t.Fatalf("expected raw payload %v written, got %v", payload, got)
		}
	}
}

func TestWriteAndReadSdoRoundTrip(t *testing.T) {
	w, _ := newTestWorker(t)
	runUntilEnabled(t, w, 50)

	// MaxTorque (0x6072) isn't PDO-mapped in testConfig and isn't touched by
	// the cyclic motion controller, so a value written via SDO survives
	// subsequent cycles undisturbed -- unlike a CSP-mapped register such as
	// target position, which the controller rewrites every cycle.
	handle := w.DriveHandle(0)
	if !handle.WriteSdo(cia402.IndexMaxTorque, 0, []byte{0x09, 0x00}) {
		t.Fatalf("expected SDO write accepted")
	}
	if err := w.RunCycle(time.Now()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	ch, ok := handle.ReadSdo(cia402.IndexMaxTorque, 0)
	if !ok {
		t.Fatalf("expected SDO read accepted")
	}
	if err := w.RunCycle(time.Now()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			t.Fatalf("unexpected SDO read error: %v", res.Err)
		}
		if res.Value[0] != 0x09 {
			t.Fatalf("expected the previously-written SDO value back, got %v", res.Value)
		}
	default:
		t.Fatalf("expected a buffered SDO read result")
	}
}

func TestArmProbeWritesEnableAndEdgeBitsToMappedPdo(t *testing.T) {
	cfg := testConfig()
	cfg.Drives[0].Pdo.CustomPdoConfig = true
	cfg.Drives[0].Pdo.RxPdos = append(cfg.Drives[0].Pdo.RxPdos, config.PdoEntry{Index: cia402.IndexProbeFunction, BitLength: 16})
	adapter := master.NewSimAdapter(0)
	lg := logging.NewDiscardLogger()
	ingress := transport.NewIngress(16)
	egress := transport.NewEgress()

	w, err := New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	runUntilEnabled(t, w, 50)

	handle := w.DriveHandle(0)
	if !handle.ArmProbe(command.ProbeEdgeNegative, false) {
		t.Fatalf("expected arm_probe accepted")
	}
	if err := w.RunCycle(time.Now()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	s := w.slaves[0]
	got := pdo.ReadU16(adapter.DomainImage(), s.probeFnOff)
	if want := cia402.PFBitEnableProbe1 | cia402.PFBitProbe1NegEdge; got != want {
		t.Fatalf("expected probe function 0x%04x written, got 0x%04x", want, got)
	}
}

func TestStartupWritesHomingParametersViaSdo(t *testing.T) {
	cfg := testConfig()
	cfg.Drives[0].Homing = config.HomingConfig{Method: 35, SearchVel: 400, ZeroVel: 50, Accel: 1000, Offset: -10}
	adapter := master.NewSimAdapter(0)
	lg := logging.NewDiscardLogger()
	ingress := transport.NewIngress(16)
	egress := transport.NewEgress()

	w, err := New(cfg, adapter, lg, ingress, egress)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	method, err := adapter.SdoUpload(0, cia402.IndexHomingMethod, 0, 1)
	if err != nil || len(method) != 1 || int8(method[0]) != 35 {
		t.Fatalf("expected homing method 35 written, got %v (err=%v)", method, err)
	}
	search, err := adapter.SdoUpload(0, cia402.IndexHomingSpeeds, 1, 4)
	if err != nil || len(search) != 4 {
		t.Fatalf("expected homing search speed written, err=%v", err)
	}
}

func TestStopMotionRetargetsToMeasuredPositionWhenConfigured(t *testing.T) {
	s := newSlaveState(config.DriveConfig{
		OperationMode: int(cia402.ModeCSP),
		Ruckig:        config.RuckigConfig{HoldMeasuredPositionOnStop: true},
	})
	s.intent.Mode = cia402.ModeCSP
	s.lastPosAct = 9999

	s.applyCommand(command.Command{Kind: command.KindStopMotion}, false)

	if s.intent.CSPPosition == nil || *s.intent.CSPPosition != 9999 {
		t.Fatalf("expected CSP retargeted to measured position 9999, got %+v", s.intent.CSPPosition)
	}
}

func TestStopMotionLeavesCommandedPositionByDefault(t *testing.T) {
	s := newSlaveState(config.DriveConfig{OperationMode: int(cia402.ModeCSP)})
	s.intent.Mode = cia402.ModeCSP
	s.lastPosAct = 9999

	s.applyCommand(command.Command{Kind: command.KindStopMotion}, false)

	if s.intent.CSPPosition != nil {
		t.Fatalf("expected commanded position left alone by default, got %+v", s.intent.CSPPosition)
	}
}

func TestWorkerGracefulShutdownHoldsPosition(t *testing.T) {
	w, adapter := newTestWorker(t)
	runUntilEnabled(t, w, 50)
	if err := w.shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	s := w.slaves[0]
	img := adapter.DomainImage()
	if got := pdo.ReadU16(img, s.cwOff); got != cia402.CWDisableVoltage {
		t.Fatalf("expected controlword 0x%04x after shutdown, got 0x%04x", cia402.CWDisableVoltage, got)
	}
	if got := pdo.ReadI32(img, s.targetPosOff); got != s.lastPosAct {
		t.Fatalf("expected target held at measured position %d, got %d", s.lastPosAct, got)
	}
}

func TestSnapshotReportsOpDomainStateWhenAllSlavesInOp(t *testing.T) {
	w, _ := newTestWorker(t)
	runUntilEnabled(t, w, 50)

	snap := w.buildSnapshot(time.Now())
	if snap.DomainState != "OP" {
		t.Fatalf("expected domain state OP, got %q", snap.DomainState)
	}
	if snap.DomainWorkingCounter != 1 {
		t.Fatalf("expected working counter 1 for the one configured slave, got %d", snap.DomainWorkingCounter)
	}
	if snap.MinWorkingCounter != 1 || snap.MaxWorkingCounter != 1 {
		t.Fatalf("expected min/max working counter 1, got min=%d max=%d", snap.MinWorkingCounter, snap.MaxWorkingCounter)
	}
}

func TestSnapshotReportsNonOpDomainStateDuringDropout(t *testing.T) {
	w, adapter := newTestWorker(t)
	runUntilEnabled(t, w, 50)

	adapter.SetSlaveState(0, master.StateSafeOp)
	if err := w.RunCycle(time.Now()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	snap := w.buildSnapshot(time.Now())
	if snap.DomainState == "OP" {
		t.Fatalf("expected non-OP domain state during dropout, got %q", snap.DomainState)
	}
	if snap.DomainWorkingCounter != 0 {
		t.Fatalf("expected working counter 0 during dropout, got %d", snap.DomainWorkingCounter)
	}
	if snap.MinWorkingCounter != 0 {
		t.Fatalf("expected min working counter to drop to 0, got %d", snap.MinWorkingCounter)
	}
}
