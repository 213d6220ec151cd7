package transport

import (
	"testing"
	"time"

	"github.com/gravwell/ethercat/command"
	"github.com/gravwell/ethercat/status"
)

func TestIngressDrainBound(t *testing.T) {
	in := NewIngress(32)
	for i := 0; i < 20; i++ {
		if !in.Send(command.Command{Kind: command.KindNoOp, Slave: i}) {
			t.Fatalf("send %d should have been accepted", i)
		}
	}

	var got []int
	if err := in.Drain(16, func(c command.Command) { got = append(got, c.Slave) }); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("expected exactly 16 drained, got %d", len(got))
	}

	got = nil
	if err := in.Drain(16, func(c command.Command) { got = append(got, c.Slave) }); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 remaining drained, got %d", len(got))
	}
}

func TestIngressDrainReturnsImmediatelyWhenEmpty(t *testing.T) {
	in := NewIngress(4)
	start := time.Now()
	var got int
	if err := in.Drain(16, func(command.Command) { got++ }); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected no commands, got %d", got)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("drain on empty queue took %v, want near-instant", elapsed)
	}
}

func TestIngressBackpressure(t *testing.T) {
	in := NewIngress(1)
	if !in.Send(command.Command{Kind: command.KindNoOp}) {
		t.Fatalf("first send should be accepted")
	}
	if in.Send(command.Command{Kind: command.KindNoOp}) {
		t.Fatalf("second send should be rejected (queue full)")
	}
}

func TestEgressCoalescing(t *testing.T) {
	eg := NewEgress()
	if _, ok := eg.LatestSnapshot(); ok {
		t.Fatalf("expected no snapshot before first publish")
	}

	eg.Publish(status.Snapshot{DeadlineMisses: 1})
	eg.Publish(status.Snapshot{DeadlineMisses: 2})

	s1, ok := eg.LatestSnapshot()
	if !ok || s1.DeadlineMisses != 2 {
		t.Fatalf("expected newest snapshot (2), got %+v ok=%v", s1, ok)
	}
	s2, _ := eg.LatestSnapshot()
	if s2.DeadlineMisses != 2 {
		t.Fatalf("expected repeated read of same snapshot without intervening publish")
	}
}
