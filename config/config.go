/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads the .conf (gcfg/INI) configuration describing a
// NetworkConfig and its ordered DriveConfigs.
package config

import (
	"fmt"
	"sort"
	"time"
)

// HomingConfig carries the homing parameters written via startup SDO; the
// attainment semantics themselves are device specific and out of scope
// (the application polls the statusword).
type HomingConfig struct {
	Method    int32
	SearchVel int32
	ZeroVel   int32
	Accel     uint32
	Offset    int32
}

// RuckigConfig configures the optional jerk-limited planner for a drive.
type RuckigConfig struct {
	Enabled                   bool
	MaxVelocity               float64
	MaxAcceleration           float64
	MaxJerk                   float64
	VelocityLookaheadS        float64
	// HoldMeasuredPositionOnStop, when true, retargets CSP to the latest
	// measured position on stop instead of leaving the last commanded
	// setpoint in place. The zero value (false) matches the original's
	// hold_last_commanded_position=True default.
	HoldMeasuredPositionOnStop bool
}

func (r RuckigConfig) withDefaults() RuckigConfig {
	if r.VelocityLookaheadS <= 0 {
		r.VelocityLookaheadS = 0.5
	}
	return r
}

// PdoEntry is one (index, subindex, bit length) registration, used when a
// drive's custom PDO selection overrides the ESI-derived mapping.
type PdoEntry struct {
	Index     uint16
	Subindex  uint8
	BitLength uint16
}

// PdoSelection optionally replaces the ESI-derived PDO mapping in whole,
// for the affected PDOs, per spec step 4.1.3.
type PdoSelection struct {
	RxPdos          []PdoEntry
	TxPdos          []PdoEntry
	CustomPdoConfig bool
}

// SdoWrite is a single startup service-channel write applied before the
// master is activated.
type SdoWrite struct {
	Index    uint16
	Subindex uint8
	Value    []byte
}

// DriveConfig describes one CiA-402 slave on the bus.
type DriveConfig struct {
	Position int // bus position, 0-based

	Alias       uint16
	VendorID    uint32 // required
	ProductCode uint32 // required

	EnableDC             bool
	DCAssignActivate     uint32
	DCSync0CycleTimeNs   uint32
	DCSync0ShiftNs       int32
	DCSync1CycleTimeNs   uint32
	DCSync1ShiftNs       int32

	OperationMode int // default mode: PP/PV/PT/CSP/HM, see cia402 package

	ProfileVelocity     int32
	ProfileAcceleration uint32
	MaxVelocity         int32
	MaxTorque           uint16

	ESIPath string
	Pdo     PdoSelection

	Homing HomingConfig
	Ruckig RuckigConfig

	RotationDirection int // +1 or -1, passive metadata
	InertiaRatio      float64
	PositionLimitMin  int32
	PositionLimitMax  int32

	PVRequiresSetpointToggle bool
	PTRequiresSetpointToggle bool

	StartupSdo []SdoWrite
}

func (d DriveConfig) validate() error {
	if d.VendorID == 0 {
		return fmt.Errorf("drive %d: vendor id is required", d.Position)
	}
	if d.ProductCode == 0 {
		return fmt.Errorf("drive %d: product code is required", d.Position)
	}
	return nil
}

// NetworkConfig is the top-level, immutable startup configuration for one
// EtherCAT network and its Cyclic Worker.
type NetworkConfig struct {
	MasterIndex int
	Interface   string

	CycleTimeMs float64

	CPUCore    int // -1 means unset
	RTPriority int // 0 means unset

	ForceReleaseMasterOnStartup bool
	ForceReleaseSigtermFirst    bool
	ForceReleaseRetries         int
	ForceReleaseDelay           time.Duration

	OpTimeout time.Duration

	EnableTransitionPeriod time.Duration // pacing between CiA-402 transitions
	FaultResetAttemptMax   int

	PPAckMask    uint16
	PPAckTimeout time.Duration

	ForbidMotionCommands bool
	AutoEnable           bool

	StatusPublishInterval time.Duration

	// InstanceIDFile, if non-empty, persists the runtime instance UUID
	// surfaced in NetworkStatus across restarts (see worker.loadOrCreateInstanceID).
	InstanceIDFile string

	Drives []DriveConfig
}

// DefaultNetworkConfig mirrors the defaults named throughout spec.md: a
// 5ms cycle, 10s OP-entry timeout, 100ms CiA-402 pacing and PP ack
// timeout, 10 fault-reset attempts, and a 50ms status publish interval.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		MasterIndex:            0,
		CycleTimeMs:            5,
		CPUCore:                -1,
		ForceReleaseRetries:    3,
		ForceReleaseDelay:      2 * time.Second,
		OpTimeout:              10 * time.Second,
		EnableTransitionPeriod: 100 * time.Millisecond,
		FaultResetAttemptMax:   10,
		PPAckTimeout:           100 * time.Millisecond,
		StatusPublishInterval:  50 * time.Millisecond,
	}
}

// Validate checks the invariants spec §4.1 step 5 and §3 require before the
// Cyclic Worker is allowed to start: every drive must carry a vendor/product
// id, and bus positions must be unique.
func (n NetworkConfig) Validate() error {
	if n.CycleTimeMs <= 0 {
		return fmt.Errorf("cycle time must be positive")
	}
	if len(n.Drives) == 0 {
		return fmt.Errorf("at least one drive must be configured")
	}
	seen := make(map[int]bool, len(n.Drives))
	for _, d := range n.Drives {
		if err := d.validate(); err != nil {
			return err
		}
		if seen[d.Position] {
			return fmt.Errorf("duplicate drive position %d", d.Position)
		}
		seen[d.Position] = true
	}
	return nil
}

// SortedDrives returns the configured drives ordered by ascending bus
// position, matching the "ordered set of DriveConfigs" of spec §3.
func (n NetworkConfig) SortedDrives() []DriveConfig {
	ds := make([]DriveConfig, len(n.Drives))
	copy(ds, n.Drives)
	sort.Slice(ds, func(i, j int) bool { return ds[i].Position < ds[j].Position })
	return ds
}
