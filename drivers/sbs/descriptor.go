package sbs

import (
	"strings"
	"time"

	"smartbattery-go/drivers/smbus"
)

// Command identifies one logical battery command. Values are dense and index
// the descriptor table.
type Command uint8

const (
	ManufacturerAccess Command = iota
	ManufacturerBlockAccess
	RemainingCapacityAlarm
	RemainingTimeAlarm
	BatteryMode
	AtRate
	AtRateTimeToFull
	AtRateTimeToEmpty
	AtRateOK
	Temperature
	Voltage
	Current
	AverageCurrent
	MaxError
	RelativeStateOfCharge
	AbsoluteStateOfCharge
	RemainingCapacity
	FullChargeCapacity
	RunTimeToEmpty
	AverageTimeToEmpty
	AverageTimeToFull
	BatteryStatus
	CycleCount
	DesignCapacity
	DesignVoltage
	SpecificationInfo
	ManufactureDate
	SerialNumber
	ManufacturerName
	DeviceName
	DeviceChemistry
	ManufacturerData
	ChargingCurrent
	ChargingVoltage
	AlarmWarning

	numCommands
)

// Access is the wire shape of a descriptor. Exactly one of Read, Write,
// ReadWrite or Exchange.
type Access interface{ access() }

// Read issues Proto against Reg when an output is supplied.
type Read struct {
	Proto smbus.Protocol
	Reg   uint8
}

// Write issues Proto against Reg when an input is supplied.
type Write struct {
	Proto smbus.Protocol
	Reg   uint8
}

// ReadWrite runs the write half when input is given, then the read half when
// output is given.
type ReadWrite struct {
	Write Write
	Read  Read
}

// Exchange is a single write-then-read primitive. It needs both an input and
// an output; there is no one-sided form.
type Exchange struct {
	Proto    smbus.Protocol
	WriteReg uint8
	ReadReg  uint8
}

func (Read) access()      {}
func (Write) access()     {}
func (ReadWrite) access() {}
func (Exchange) access()  {}

// Result selects the decoder applied to a command's raw payload.
type Result uint8

const (
	ResultRaw Result = iota
	ResultWord
	ResultSignedWord
	ResultLong
	ResultQuad
	ResultFlag
	ResultTemperature
	ResultBatteryMode
	ResultBatteryStatus
	ResultSpecInfo
	ResultDate
	ResultText
)

// Descriptor is the static description of one command.
type Descriptor struct {
	Name    string
	Access  Access
	Flip    bool          // swap the bytes of a word input before sending
	Delay   time.Duration // between the halves of a composite exchange
	Sub     uint16        // word sent first by write-word-write-block
	InSize  int           // minimum input length
	OutSize int           // minimum Raw output length
	Result  Result
}

func readWord(name string, reg uint8, res Result) Descriptor {
	return Descriptor{
		Name:    name,
		Access:  Read{Proto: smbus.ProtoReadWord, Reg: reg},
		OutSize: 2,
		Result:  res,
	}
}

func readWriteWord(name string, reg uint8, res Result) Descriptor {
	return Descriptor{
		Name: name,
		Access: ReadWrite{
			Write: Write{Proto: smbus.ProtoWriteWord, Reg: reg},
			Read:  Read{Proto: smbus.ProtoReadWord, Reg: reg},
		},
		InSize:  2,
		OutSize: 2,
		Result:  res,
	}
}

func readBlock(name string, reg uint8, res Result) Descriptor {
	return Descriptor{
		Name:    name,
		Access:  Read{Proto: smbus.ProtoBlockRead, Reg: reg},
		OutSize: 1,
		Result:  res,
	}
}

var table = [numCommands]Descriptor{
	ManufacturerAccess: {
		Name:   "ManufacturerAccess",
		Access: Exchange{Proto: smbus.ProtoWriteWordReadBlock, WriteReg: regManufacturerAccess, ReadReg: regManufacturerData},
		InSize: 2,
	},
	ManufacturerBlockAccess: {
		Name:   "ManufacturerBlockAccess",
		Access: Exchange{Proto: smbus.ProtoWrite16BlockReadBlock, WriteReg: regManufacturerBlockAccess, ReadReg: regManufacturerBlockAccess},
		InSize: 2,
	},
	RemainingCapacityAlarm: readWriteWord("RemainingCapacityAlarm", regRemainingCapacityAlarm, ResultWord),
	RemainingTimeAlarm:     readWriteWord("RemainingTimeAlarm", regRemainingTimeAlarm, ResultWord),
	BatteryMode:            readWriteWord("BatteryMode", regBatteryMode, ResultBatteryMode),
	AtRate:                 readWriteWord("AtRate", regAtRate, ResultSignedWord),
	AtRateTimeToFull:       readWord("AtRateTimeToFull", regAtRateTimeToFull, ResultWord),
	AtRateTimeToEmpty:      readWord("AtRateTimeToEmpty", regAtRateTimeToEmpty, ResultWord),
	AtRateOK:               readWord("AtRateOK", regAtRateOK, ResultFlag),
	Temperature:            readWord("Temperature", regTemperature, ResultTemperature),
	Voltage:                readWord("Voltage", regVoltage, ResultWord),
	Current:                readWord("Current", regCurrent, ResultSignedWord),
	AverageCurrent:         readWord("AverageCurrent", regAverageCurrent, ResultSignedWord),
	MaxError:               readWord("MaxError", regMaxError, ResultWord),
	RelativeStateOfCharge:  readWord("RelativeStateOfCharge", regRelativeStateOfCharge, ResultWord),
	AbsoluteStateOfCharge:  readWord("AbsoluteStateOfCharge", regAbsoluteStateOfCharge, ResultWord),
	RemainingCapacity:      readWord("RemainingCapacity", regRemainingCapacity, ResultWord),
	FullChargeCapacity:     readWord("FullChargeCapacity", regFullChargeCapacity, ResultWord),
	RunTimeToEmpty:         readWord("RunTimeToEmpty", regRunTimeToEmpty, ResultWord),
	AverageTimeToEmpty:     readWord("AverageTimeToEmpty", regAverageTimeToEmpty, ResultWord),
	AverageTimeToFull:      readWord("AverageTimeToFull", regAverageTimeToFull, ResultWord),
	BatteryStatus:          readWord("BatteryStatus", regBatteryStatus, ResultBatteryStatus),
	CycleCount:             readWord("CycleCount", regCycleCount, ResultWord),
	DesignCapacity:         readWord("DesignCapacity", regDesignCapacity, ResultWord),
	DesignVoltage:          readWord("DesignVoltage", regDesignVoltage, ResultWord),
	SpecificationInfo:      readWord("SpecificationInfo", regSpecificationInfo, ResultSpecInfo),
	ManufactureDate:        readWord("ManufactureDate", regManufactureDate, ResultDate),
	SerialNumber:           readWord("SerialNumber", regSerialNumber, ResultWord),
	ManufacturerName:       readBlock("ManufacturerName", regManufacturerName, ResultText),
	DeviceName:             readBlock("DeviceName", regDeviceName, ResultText),
	DeviceChemistry:        readBlock("DeviceChemistry", regDeviceChemistry, ResultText),
	ManufacturerData:       readBlock("ManufacturerData", regManufacturerData, ResultRaw),
	ChargingCurrent:        readWord("ChargingCurrent", regChargingCurrent, ResultWord),
	ChargingVoltage:        readWord("ChargingVoltage", regChargingVoltage, ResultWord),
	AlarmWarning:           readWord("AlarmWarning", regAlarmWarning, ResultBatteryStatus),
}

// Lookup returns the descriptor for c.
func Lookup(c Command) (Descriptor, bool) {
	if c >= numCommands {
		return Descriptor{}, false
	}
	return table[c], true
}

func (c Command) String() string {
	if c >= numCommands {
		return "Command(?)"
	}
	return table[c].Name
}

// Commands lists every command in table order.
func Commands() []Command {
	out := make([]Command, numCommands)
	for i := range out {
		out[i] = Command(i)
	}
	return out
}

// ParseCommand resolves a command by name, ignoring case and underscores.
func ParseCommand(name string) (Command, bool) {
	key := strings.ReplaceAll(name, "_", "")
	for i := range table {
		if strings.EqualFold(table[i].Name, key) {
			return Command(i), true
		}
	}
	return 0, false
}
