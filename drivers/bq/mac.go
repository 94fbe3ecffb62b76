// Package bq adds the TI bq-series gauge extensions on top of an SBS battery:
// security state transitions (seal, unseal, full access) and the
// ManufacturerAccess sub-command catalogue.
package bq

// ManufacturerAccess sub-commands.
const (
	MACManufacturerData         = 0x0000
	MACDeviceType               = 0x0001
	MACFirmwareVersion          = 0x0002
	MACHardwareVersion          = 0x0003
	MACInstructionFlashChecksum = 0x0004
	MACDataFlashChecksum        = 0x0005
	MACChemicalID               = 0x0006
	MACShutdownMode             = 0x0010
	MACSleepMode                = 0x0011
	MACDeviceReset              = 0x0012
	MACFuseToggle               = 0x001D
	MACPrechargeFET             = 0x001E
	MACChargeFET                = 0x001F
	MACDischargeFET             = 0x0020
	MACGauging                  = 0x0021
	MACFETControl               = 0x0022
	MACLifetimeDataCollection   = 0x0023
	MACPermanentFailure         = 0x0024
	MACBlackBoxRecorder         = 0x0025
	MACFuse                     = 0x0026
	MACLifetimeDataReset        = 0x0028
	MACPermanentFailDataReset   = 0x0029
	MACBlackBoxRecorderReset    = 0x002A
	MACCalibrationMode          = 0x002D
	MACSealDevice               = 0x0030
	MACUnsealDevice             = 0x0031
	MACFullAccessDevice         = 0x0032
	MACROMMode                  = 0x0033
	MACUnsealKey                = 0x0035
	MACFullAccessKey            = 0x0036
	MACAuthenticationKey        = 0x0037
	MACSafetyAlert              = 0x0050
	MACSafetyStatus             = 0x0051
	MACPFAlert                  = 0x0052
	MACPFStatus                 = 0x0053
	MACOperationStatus          = 0x0054
	MACChargingStatus           = 0x0055
	MACGaugingStatus            = 0x0056
	MACManufacturingStatus      = 0x0057
	MACAFERegister              = 0x0058
	MACTurboPower               = 0x0059
	MACTurboFinal               = 0x005A
	MACTurboPackR               = 0x005B
	MACTurboSysR                = 0x005C
	MACMinSysV                  = 0x005D
	MACTurboCurrent             = 0x005E
	MACLifetimeDataBlock1       = 0x0060
	MACLifetimeDataBlock2       = 0x0061
	MACLifetimeDataBlock3       = 0x0062
	MACManufacturerInfo         = 0x0070
	MACVoltages                 = 0x0071
	MACTemperatures             = 0x0072
	MACITStatus1                = 0x0073
	MACITStatus2                = 0x0074
	MACManualFETControl         = 0x270C
	MACExitCalibrationOutput    = 0xF080
	MACOutputCCAndADC           = 0xF081
	MACOutputShortedCCAndADC    = 0xF082
)

// Default two-word keys as shipped from the factory. Packs in the field
// should have had them changed.
var (
	DefaultUnsealKey     = [2]uint16{0x0414, 0x3672}
	DefaultFullAccessKey = [2]uint16{0xFFFF, 0xFFFF}
)

// regAuthResponse receives the reversed H2 digest (ManufacturerInput,
// OptionalMfgFunction5 in SBS terms).
const regAuthResponse = 0x2F

// DFAccessRow returns the sub-command that selects data flash row r (0..3).
func DFAccessRow(r uint8) uint16 { return 0x0100 | uint16(r&0x03) }
