package planner

import "testing"

func validLimits() Limits {
	return Limits{MaxVelocity: 2000, MaxAcceleration: 5000, MaxJerk: 50000}
}

func TestStartPositionRejectsNonPositiveLimits(t *testing.T) {
	var p SCurvePlanner
	bad := Limits{MaxVelocity: 0, MaxAcceleration: 5000, MaxJerk: 50000}
	if err := p.StartPosition(0, 0, 1000, bad, 0.001, 0.5); err == nil {
		t.Fatalf("expected error for zero max_velocity")
	}
	if p.IsActive() {
		t.Fatalf("planner should not activate on a rejected start")
	}
}

func TestStartVelocityRejectsNonPositiveLimits(t *testing.T) {
	var p SCurvePlanner
	bad := Limits{MaxVelocity: 100, MaxAcceleration: 0, MaxJerk: 50000}
	if err := p.StartVelocity(0, 0, 500, bad, 0.001, 0.5); err == nil {
		t.Fatalf("expected error for zero max_acceleration")
	}
}

func TestPositionMoveConvergesAndAutoStops(t *testing.T) {
	var p SCurvePlanner
	if err := p.StartPosition(0, 0, 100000, validLimits(), 0.001, 0.5); err != nil {
		t.Fatalf("start: %v", err)
	}
	var last Step
	for i := 0; i < 100000; i++ {
		s, active := p.Step()
		if !active {
			t.Fatalf("planner went inactive before reporting done")
		}
		last = s
		if s.Done {
			break
		}
	}
	if !last.Done {
		t.Fatalf("position move never completed")
	}
	if last.Position != 100000 {
		t.Fatalf("expected final position 100000, got %d", last.Position)
	}
	if p.IsActive() {
		t.Fatalf("planner should auto-stop after a completed position move")
	}
}

func TestVelocityCommandNeverAutoStops(t *testing.T) {
	var p SCurvePlanner
	if err := p.StartVelocity(0, 0, 500, validLimits(), 0.001, 0.5); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5000; i++ {
		s, active := p.Step()
		if !active {
			t.Fatalf("velocity command should never auto-deactivate")
		}
		if s.Done {
			t.Fatalf("velocity command should never report done")
		}
	}
	if !p.IsActive() {
		t.Fatalf("expected planner still active")
	}
	p.Stop()
	if p.IsActive() {
		t.Fatalf("expected planner inactive after Stop")
	}
}

func TestVelocityCommandApproachesTarget(t *testing.T) {
	var p SCurvePlanner
	target := 800.0
	if err := p.StartVelocity(0, 0, target, validLimits(), 0.001, 0.2); err != nil {
		t.Fatalf("start: %v", err)
	}
	var last Step
	for i := 0; i < 20000; i++ {
		last, _ = p.Step()
	}
	if diff := last.Velocity - target; diff > 1 || diff < -1 {
		t.Fatalf("expected velocity to converge near %v, got %v", target, last.Velocity)
	}
}

func TestLargeMagnitudeRebase(t *testing.T) {
	var p SCurvePlanner
	if err := p.StartVelocity(2_000_000_000, 0, 1000, validLimits(), 0.001, 0.5); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3_000_000; i++ {
		p.Step()
		if p.positionOffset != 0 {
			return
		}
	}
	t.Fatalf("expected rebase to trigger for a large-magnitude starting position")
}

func TestStepOnInactivePlannerReportsInactive(t *testing.T) {
	var p SCurvePlanner
	if _, active := p.Step(); active {
		t.Fatalf("expected inactive planner to report inactive")
	}
}
