//go:build linux

package worker

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// applyScheduling pins the calling OS thread to cfg.CPUCore and/or raises
// it to SCHED_FIFO at cfg.RTPriority, per spec §5 "the worker may request
// realtime priority and CPU pinning if configured." Both are best-effort
// in the sense that a negative CPUCore or a RTPriority <=0
// skips that half entirely; once requested, failure is fatal rather than
// silently degrading the isolation spec §5 is built on.
//
// Must be called from the goroutine that will run the cyclic loop:
// sched_setaffinity/sched_setscheduler apply to the calling thread, and Go
// does not guarantee a goroutine stays on one OS thread unless locked to
// it first (see runtime.LockOSThread in Startup).
func applyScheduling(cpuCore, rtPriority int) error {
	if cpuCore >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(cpuCore)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			return fmt.Errorf("set cpu affinity to core %d: %w", cpuCore, err)
		}
	}
	if rtPriority > 0 {
		param := &unix.SchedParam{Priority: int32(rtPriority)}
		if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
			return fmt.Errorf("set realtime priority %d: %w", rtPriority, err)
		}
	}
	return nil
}
