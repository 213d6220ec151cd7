// Package cia402 implements the CiA-402 object dictionary constants and the
// per-slave drive state machine that brings a drive from Switch-On-Disabled
// to Operation Enabled and handles fault recovery.
//
// Register and bit constants are the bit-exact source of truth named in
// spec §6; they are grounded on original_source/constants.py, translated
// from Python module constants into a typed Go const block.
package cia402

// Object dictionary indices (CoE).
const (
	IndexErrorCode      uint16 = 0x603F
	IndexControlword    uint16 = 0x6040
	IndexStatusword     uint16 = 0x6041
	IndexModesOp        uint16 = 0x6060
	IndexModesOpDisplay uint16 = 0x6061
	IndexPositionActual uint16 = 0x6064
	IndexVelocityActual uint16 = 0x606C
	IndexTargetTorque   uint16 = 0x6071
	IndexMaxTorque      uint16 = 0x6072
	IndexTorqueActual   uint16 = 0x6077
	IndexTargetPosition uint16 = 0x607A
	IndexProbeFunction  uint16 = 0x60B8
	IndexProbeStatus    uint16 = 0x60B9
	IndexProbePos1      uint16 = 0x60BA
	IndexProbePos2A     uint16 = 0x60BB // device-specific alternate, spec §9
	IndexProbePos2B     uint16 = 0x60BC // canonical, preferred when both mapped
	IndexDigitalInputs  uint16 = 0x60FD
	IndexTargetVelocity uint16 = 0x60FF

	// IndexProfileVelocity/IndexProfileAcceleration (0x6081/0x6083) are the
	// PP/HM motion-envelope defaults of spec §3's DriveConfig
	// ("motion envelope defaults"); unlike the register set above they are
	// not required to be PDO-mapped, so they are written once via
	// service channel at startup rather than cyclically.
	IndexProfileVelocity     uint16 = 0x6081
	IndexProfileAcceleration uint16 = 0x6083

	// Homing parameters (method, search/zero speeds, acceleration, and home
	// offset): like the profile registers above, these are startup-only
	// service-channel writes, never PDO-mapped.
	IndexHomingMethod       uint16 = 0x6098
	IndexHomingSpeeds       uint16 = 0x6099 // subindex 1: switch search speed, 2: zero search speed
	IndexHomingAcceleration uint16 = 0x609A
	IndexHomeOffset         uint16 = 0x607C
)

// Mode is the CiA-402 "modes of operation" value written to 0x6060.
type Mode int32

const (
	ModeNoMode Mode = 0
	ModePP     Mode = 1 // Profile Position
	ModeVL     Mode = 2 // Velocity (open loop)
	ModePV     Mode = 3 // Profile Velocity
	ModeHM     Mode = 6 // Homing
	ModeCSP    Mode = 8 // Cyclic Synchronous Position
	ModeCSV    Mode = 9 // Cyclic Synchronous Velocity
	ModePT     Mode = 10 // Profile Torque, per spec §4.3 (object 0x6071/short form)
)

func (m Mode) String() string {
	switch m {
	case ModeNoMode:
		return "no-mode"
	case ModePP:
		return "pp"
	case ModeVL:
		return "vl"
	case ModePV:
		return "pv"
	case ModeHM:
		return "hm"
	case ModeCSP:
		return "csp"
	case ModeCSV:
		return "csv"
	case ModePT:
		return "pt"
	}
	return "unknown"
}

// Controlword bits (0x6040).
const (
	CWBitNewSetPoint     uint16 = 1 << 4 // PP/HM set-point / homing-start strobe
	CWBitChangeImmediate uint16 = 1 << 5
	CWBitAbsRel          uint16 = 1 << 6 // 0 = absolute, 1 = relative
	CWBitHalt            uint16 = 1 << 8

	CWEnableOpSimplified uint16 = 0x000F
	CWShutdown           uint16 = 0x0006
	CWSwitchOn           uint16 = 0x0007
	CWDisableVoltage     uint16 = 0x0000
	CWFaultReset         uint16 = 0x0080
)

// Statusword bits/masks (0x6041).
const (
	SWBitFault                uint16 = 1 << 3
	SWBitWarning              uint16 = 1 << 7
	SWBitTargetReached        uint16 = 1 << 10
	SWBitInternalLimit        uint16 = 1 << 11
	SWBitSetpointAcknowledged uint16 = 1 << 12

	SWMaskStateSelect  uint16 = 0x006F
	SWMaskFaultSelect  uint16 = 0x004F
	SWPatternSwitchOnDisabled uint16 = 0x0040
	SWPatternReadyToSwitchOn  uint16 = 0x0021
	SWPatternSwitchedOn       uint16 = 0x0023
	SWPatternOperationEnabled uint16 = 0x0027
)

// Touch probe status bits (0x60B9): the latched positive/negative edge
// trigger flags for probe 1, independent of which probe-2 register (0x60BB
// or 0x60BC) the device exposes.
const (
	PSBitProbe1PosTriggered uint16 = 1 << 1
	PSBitProbe1NegTriggered uint16 = 1 << 2
)

// Probe function command bits (0x60B8): arming probe 1 requires the enable
// bit plus an edge selector. Writing 0 disarms.
const (
	PFBitEnableProbe1  uint16 = 0x0001
	PFBitProbe1PosEdge uint16 = 0x0004
	PFBitProbe1NegEdge uint16 = 0x0008
)

// IsFault reports whether the fault bit (statusword bit 3) is set.
func IsFault(sw uint16) bool { return sw&SWBitFault != 0 }

// IsOperationEnabled reports whether the masked statusword matches the
// Operation Enabled pattern: (sw & 0x006F) == 0x0027.
func IsOperationEnabled(sw uint16) bool { return sw&SWMaskStateSelect == SWPatternOperationEnabled }

// IsWarning reports the warning bit (statusword bit 7).
func IsWarning(sw uint16) bool { return sw&SWBitWarning != 0 }

// IsTargetReached reports the target-reached bit (statusword bit 10).
func IsTargetReached(sw uint16) bool { return sw&SWBitTargetReached != 0 }

// IsSetpointAcknowledged reports the set-point-acknowledged bit (bit 12).
func IsSetpointAcknowledged(sw uint16) bool { return sw&SWBitSetpointAcknowledged != 0 }
