// Package sbs drives Smart Battery System (SBS 1.1) packs over SMBus.
//
// Each logical battery command is described by an immutable Descriptor in a
// table indexed by Command. RunCommand validates caller buffers against the
// descriptor, runs the wire protocol it names and decodes the result into one
// of a closed set of Output variants.
package sbs

const (
	// 7-bit SMBus address of a smart battery (0001_011b).
	AddressDefault = 0x0B

	// --- SBS command codes (word registers unless noted) ---
	regManufacturerAccess     = 0x00 // R/W
	regRemainingCapacityAlarm = 0x01 // R/W
	regRemainingTimeAlarm     = 0x02 // R/W
	regBatteryMode            = 0x03 // R/W
	regAtRate                 = 0x04 // R/W
	regAtRateTimeToFull       = 0x05
	regAtRateTimeToEmpty      = 0x06
	regAtRateOK               = 0x07
	regTemperature            = 0x08 // 0.1 K
	regVoltage                = 0x09 // mV
	regCurrent                = 0x0A // mA, signed
	regAverageCurrent         = 0x0B // mA, signed
	regMaxError               = 0x0C // %
	regRelativeStateOfCharge  = 0x0D // %
	regAbsoluteStateOfCharge  = 0x0E // %
	regRemainingCapacity      = 0x0F
	regFullChargeCapacity     = 0x10
	regRunTimeToEmpty         = 0x11 // min
	regAverageTimeToEmpty     = 0x12 // min
	regAverageTimeToFull      = 0x13 // min
	regChargingCurrent        = 0x14 // mA
	regChargingVoltage        = 0x15 // mV
	regBatteryStatus          = 0x16
	regAlarmWarning           = 0x16 // same register, written by the battery as a master
	regCycleCount             = 0x17
	regDesignCapacity         = 0x18
	regDesignVoltage          = 0x19 // mV
	regSpecificationInfo      = 0x1A
	regManufactureDate        = 0x1B
	regSerialNumber           = 0x1C

	// Block registers.
	regManufacturerName = 0x20
	regDeviceName       = 0x21
	regDeviceChemistry  = 0x22
	regManufacturerData = 0x23

	// bq-series extension: MAC with block-wrapped sub-command and response.
	regManufacturerBlockAccess = 0x44
)

// Exported aliases used by vendor extensions.
const (
	RegManufacturerAccess      = regManufacturerAccess
	RegManufacturerData        = regManufacturerData
	RegManufacturerBlockAccess = regManufacturerBlockAccess
)

// --- BatteryMode bits (0x03) ---
const (
	modeInternalChargeController = 1 << 0
	modePrimaryBatterySupport    = 1 << 1
	modeConditioningFlag         = 1 << 7
	modeChargeControllerEnabled  = 1 << 8
	modePrimaryBattery           = 1 << 9
	modeAlarmMode                = 1 << 13
	modeChargerMode              = 1 << 14
	modeCapacityMode             = 1 << 15
)

// --- BatteryStatus bits (0x16) ---
const (
	stOverChargedAlarm        = 1 << 15
	stTerminateChargeAlarm    = 1 << 14
	stOverTempAlarm           = 1 << 12
	stTerminateDischargeAlarm = 1 << 11
	stRemainingCapacityAlarm  = 1 << 9
	stRemainingTimeAlarm      = 1 << 8
	stInitialized             = 1 << 7
	stDischarging             = 1 << 6
	stFullyCharged            = 1 << 5
	stFullyDischarged         = 1 << 4
	stErrorMask               = 0x0F
)
