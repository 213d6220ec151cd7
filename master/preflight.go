package master

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gravwell/ethercat/logging"
)

// ReleaseConfig configures the best-effort preflight release of a busy
// master device node (spec §4.1 step 1): "best-effort terminate any
// process holding the master device node (escalating term->kill), wait a
// configurable delay, retry up to N attempts. This step may require
// elevated privilege and is therefore gated by explicit configuration."
type ReleaseConfig struct {
	DevicePath   string
	SigtermFirst bool
	Retries      int
	Delay        time.Duration
}

// ReleaseBusyDevice attempts to free DevicePath for this process by
// signaling every process whose open file descriptors reference it.
// Grounded on manager/process.go's requestKill: with SigtermFirst set, send
// a non-fatal signal first (SIGTERM here, rather than the teacher's SIGINT,
// since this is an external process rather than one we manage
// cooperatively), wait up to Delay, then escalate to SIGKILL; without it,
// send SIGKILL directly. Repeat up to Retries times.
//
// This is gated by explicit configuration (ForceReleaseMasterOnStartup)
// because enumerating and signaling other processes' PIDs by device fd
// generally requires elevated privilege.
func ReleaseBusyDevice(cfg ReleaseConfig, lg *logging.Logger) error {
	if cfg.DevicePath == `` {
		return fmt.Errorf("preflight release: no device path configured")
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	for attempt := 0; attempt < retries; attempt++ {
		pids, err := pidsHoldingPath(cfg.DevicePath)
		if err != nil {
			return fmt.Errorf("preflight release: enumerate holders: %w", err)
		}
		if len(pids) == 0 {
			return nil
		}
		sig := unix.SIGKILL
		if cfg.SigtermFirst {
			sig = unix.SIGTERM
		}
		for _, pid := range pids {
			if err := unix.Kill(pid, sig); err != nil {
				lg.Warn("failed to signal master device holder", logging.KV("pid", pid), logging.KV("signal", sig), logging.KV("err", err))
			}
		}
		time.Sleep(delay)

		if cfg.SigtermFirst {
			pids, err = pidsHoldingPath(cfg.DevicePath)
			if err != nil {
				return fmt.Errorf("preflight release: enumerate holders: %w", err)
			}
			for _, pid := range pids {
				if err := unix.Kill(pid, unix.SIGKILL); err != nil {
					lg.Warn("failed to sigkill master device holder", logging.KV("pid", pid), logging.KV("err", err))
				}
			}
			time.Sleep(delay)
		}
	}

	pids, err := pidsHoldingPath(cfg.DevicePath)
	if err != nil {
		return fmt.Errorf("preflight release: final enumerate holders: %w", err)
	}
	if len(pids) != 0 {
		return fmt.Errorf("preflight release: device %s still held by %d process(es) after %d attempts", cfg.DevicePath, len(pids), retries)
	}
	return nil
}

// pidsHoldingPath scans /proc/*/fd for symlinks resolving to path, the
// standard Linux way to discover holders of a device node without a
// dedicated syscall.
func pidsHoldingPath(path string) ([]int, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path // device may not exist under this name yet
	}

	procDents, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var pids []int
	for _, d := range procDents {
		pid, err := strconv.Atoi(d.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", d.Name(), "fd")
		fdDents, err := os.ReadDir(fdDir)
		if err != nil {
			continue // process exited or not ours to read
		}
		for _, fd := range fdDents {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if link == path || link == resolved {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids, nil
}
