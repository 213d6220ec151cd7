/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"fmt"
	"time"
)

// fileConfig is the gcfg-tagged shape of the .conf file, mirroring the
// Global-section-plus-named-map-sections layout the teacher uses
// (ingest/config's cfgType{Global; Listener map[string]*lst}). gcfg only
// understands strings, bools, numeric types and []string natively, so the
// encoded-integer and duration fields are decoded by hand in toNetworkConfig
// via the helpers in parse.go.
type fileConfig struct {
	Global struct {
		Master_Index                     int
		Network_Interface                string
		Cycle_Time_Ms                    float64
		Cpu_Core                         int
		Rt_Priority                      int
		Force_Release_Master_On_Startup  bool
		Force_Release_Sigterm_First      bool
		Force_Release_Retries            int
		Force_Release_Delay_Ms           int
		Op_Timeout_S                     float64
		Enable_Transition_Period_Ms      int
		Fault_Reset_Attempt_Max          int
		Pp_Ack_Mask                      string
		Pp_Ack_Timeout_Ms                int
		Forbid_Motion_Commands           bool
		Auto_Enable                      bool
		Status_Publish_Interval_Ms       int
		Instance_Id_File                 string
	}
	Drive map[string]*driveSection
}

type driveSection struct {
	Position              int
	Alias                 string
	Vendor_Id             string
	Product_Code          string
	Enable_Dc             bool
	Dc_Assign_Activate    string
	Dc_Sync0_Cycle_Time_Ns int
	Dc_Sync0_Shift_Ns     int
	Dc_Sync1_Cycle_Time_Ns int
	Dc_Sync1_Shift_Ns     int
	Operation_Mode        string
	Profile_Velocity      int
	Profile_Acceleration  int
	Max_Velocity          int
	Max_Torque            int
	Esi_Path              string
	Rotation_Direction    int
	Inertia_Ratio         float64
	Position_Limit_Min    int
	Position_Limit_Max    int
	Pv_Requires_Setpoint_Toggle bool
	Pt_Requires_Setpoint_Toggle bool

	Homing_Method     int
	Homing_Search_Vel int
	Homing_Zero_Vel   int
	Homing_Accel      int
	Homing_Offset     int

	Ruckig_Enabled                      bool
	Ruckig_Max_Velocity                 float64
	Ruckig_Max_Acceleration             float64
	Ruckig_Max_Jerk                     float64
	Ruckig_Velocity_Lookahead_S         float64
	Ruckig_Hold_Measured_Position_On_Stop bool
}

// Load reads and parses path plus any overlay .conf files found in
// overlayDir (overlayDir may be empty) into a NetworkConfig.
func Load(path, overlayDir string) (NetworkConfig, error) {
	var fc fileConfig
	if err := LoadConfigFile(&fc, path); err != nil {
		return NetworkConfig{}, err
	}
	if overlayDir != `` {
		if err := LoadConfigOverlays(&fc, overlayDir); err != nil {
			return NetworkConfig{}, err
		}
	}
	return fc.toNetworkConfig()
}

func (fc fileConfig) toNetworkConfig() (nc NetworkConfig, err error) {
	nc = DefaultNetworkConfig()
	g := fc.Global
	nc.MasterIndex = g.Master_Index
	nc.Interface = g.Network_Interface
	if g.Cycle_Time_Ms > 0 {
		nc.CycleTimeMs = g.Cycle_Time_Ms
	}
	nc.CPUCore = g.Cpu_Core
	if nc.CPUCore == 0 {
		nc.CPUCore = -1
	}
	nc.RTPriority = g.Rt_Priority
	nc.ForceReleaseMasterOnStartup = g.Force_Release_Master_On_Startup
	nc.ForceReleaseSigtermFirst = g.Force_Release_Sigterm_First
	if g.Force_Release_Retries > 0 {
		nc.ForceReleaseRetries = g.Force_Release_Retries
	}
	if g.Force_Release_Delay_Ms > 0 {
		nc.ForceReleaseDelay = time.Duration(g.Force_Release_Delay_Ms) * time.Millisecond
	}
	if g.Op_Timeout_S > 0 {
		nc.OpTimeout = time.Duration(g.Op_Timeout_S * float64(time.Second))
	}
	if g.Enable_Transition_Period_Ms > 0 {
		nc.EnableTransitionPeriod = time.Duration(g.Enable_Transition_Period_Ms) * time.Millisecond
	}
	if g.Fault_Reset_Attempt_Max > 0 {
		nc.FaultResetAttemptMax = g.Fault_Reset_Attempt_Max
	}
	if g.Pp_Ack_Mask != `` {
		var m uint64
		if m, err = ParseUint64(g.Pp_Ack_Mask); err != nil {
			return NetworkConfig{}, fmt.Errorf("pp-ack-mask: %w", err)
		}
		nc.PPAckMask = uint16(m)
	}
	if g.Pp_Ack_Timeout_Ms > 0 {
		nc.PPAckTimeout = time.Duration(g.Pp_Ack_Timeout_Ms) * time.Millisecond
	}
	nc.ForbidMotionCommands = g.Forbid_Motion_Commands
	nc.AutoEnable = g.Auto_Enable
	if g.Status_Publish_Interval_Ms > 0 {
		nc.StatusPublishInterval = time.Duration(g.Status_Publish_Interval_Ms) * time.Millisecond
	}
	nc.InstanceIDFile = g.Instance_Id_File

	for name, ds := range fc.Drive {
		var d DriveConfig
		if d, err = ds.toDriveConfig(); err != nil {
			return NetworkConfig{}, fmt.Errorf("drive %q: %w", name, err)
		}
		nc.Drives = append(nc.Drives, d)
	}
	if err = nc.Validate(); err != nil {
		return NetworkConfig{}, err
	}
	return nc, nil
}

func (ds *driveSection) toDriveConfig() (d DriveConfig, err error) {
	d.Position = ds.Position
	var v uint64
	if ds.Alias != `` {
		if v, err = ParseUint64(ds.Alias); err != nil {
			return d, fmt.Errorf("alias: %w", err)
		}
		d.Alias = uint16(v)
	}
	if v, err = ParseUint64(ds.Vendor_Id); err != nil {
		return d, fmt.Errorf("vendor-id: %w", err)
	}
	d.VendorID = uint32(v)
	if v, err = ParseUint64(ds.Product_Code); err != nil {
		return d, fmt.Errorf("product-code: %w", err)
	}
	d.ProductCode = uint32(v)

	d.EnableDC = ds.Enable_Dc
	if ds.Dc_Assign_Activate != `` {
		if v, err = ParseUint64(ds.Dc_Assign_Activate); err != nil {
			return d, fmt.Errorf("dc-assign-activate: %w", err)
		}
		d.DCAssignActivate = uint32(v)
	}
	d.DCSync0CycleTimeNs = uint32(ds.Dc_Sync0_Cycle_Time_Ns)
	d.DCSync0ShiftNs = int32(ds.Dc_Sync0_Shift_Ns)
	d.DCSync1CycleTimeNs = uint32(ds.Dc_Sync1_Cycle_Time_Ns)
	d.DCSync1ShiftNs = int32(ds.Dc_Sync1_Shift_Ns)

	d.OperationMode, err = parseOperationMode(ds.Operation_Mode)
	if err != nil {
		return d, err
	}

	d.ProfileVelocity = int32(ds.Profile_Velocity)
	d.ProfileAcceleration = uint32(ds.Profile_Acceleration)
	d.MaxVelocity = int32(ds.Max_Velocity)
	d.MaxTorque = uint16(ds.Max_Torque)
	d.ESIPath = ds.Esi_Path
	d.RotationDirection = ds.Rotation_Direction
	if d.RotationDirection == 0 {
		d.RotationDirection = 1
	}
	d.InertiaRatio = ds.Inertia_Ratio
	d.PositionLimitMin = int32(ds.Position_Limit_Min)
	d.PositionLimitMax = int32(ds.Position_Limit_Max)
	d.PVRequiresSetpointToggle = ds.Pv_Requires_Setpoint_Toggle
	d.PTRequiresSetpointToggle = ds.Pt_Requires_Setpoint_Toggle

	d.Homing = HomingConfig{
		Method:    int32(ds.Homing_Method),
		SearchVel: int32(ds.Homing_Search_Vel),
		ZeroVel:   int32(ds.Homing_Zero_Vel),
		Accel:     uint32(ds.Homing_Accel),
		Offset:    int32(ds.Homing_Offset),
	}
	d.Ruckig = RuckigConfig{
		Enabled:                    ds.Ruckig_Enabled,
		MaxVelocity:                ds.Ruckig_Max_Velocity,
		MaxAcceleration:            ds.Ruckig_Max_Acceleration,
		MaxJerk:                    ds.Ruckig_Max_Jerk,
		VelocityLookaheadS:         ds.Ruckig_Velocity_Lookahead_S,
		HoldMeasuredPositionOnStop: ds.Ruckig_Hold_Measured_Position_On_Stop,
	}.withDefaults()
	return d, nil
}
