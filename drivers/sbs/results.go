package sbs

import (
	"fmt"
	"math"
	"strings"

	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
)

// Output receives the decoded result of a command. The set of
// implementations is closed: *Raw, *Word, *SignedWord, *Long, *Quad, *Flag,
// *Temp, *BatteryModeBits, *StatusBits, *SpecInfo, *Date and *Text.
type Output interface {
	result() Result
	decode(raw []byte, block bool) error
}

// Raw receives undecoded bytes. For block-shaped protocols Buf[0] holds the
// received count and the payload follows. N is the number of bytes stored.
type Raw struct {
	Buf []byte
	N   int
}

// Bytes returns the stored portion of Buf.
func (r *Raw) Bytes() []byte { return r.Buf[:r.N] }

type Word struct{ V uint16 }

type SignedWord struct{ V int16 }

type Long struct{ V uint32 }

type Quad struct{ V uint64 }

type Flag struct{ V bool }

// Temp is the pack temperature in kelvin.
type Temp struct{ Kelvin float64 }

// Celsius converts the reading.
func (t Temp) Celsius() float64 { return t.Kelvin - 273.15 }

// BatteryModeBits is the decoded BatteryMode register.
type BatteryModeBits struct {
	Raw                      uint16
	InternalChargeController bool // supported
	PrimaryBatterySupport    bool
	ConditioningRequested    bool
	ChargeControllerEnabled  bool
	PrimaryBattery           bool
	AlarmMode                bool // set: AlarmWarning broadcasts disabled
	ChargerMode              bool // set: ChargingVoltage/Current broadcasts disabled
	CapacityMode             bool // set: capacities in 10 mWh, clear: mAh
}

// StatusBits is the decoded BatteryStatus/AlarmWarning register.
type StatusBits struct {
	Raw                     uint16
	OverChargedAlarm        bool
	TerminateChargeAlarm    bool
	OverTempAlarm           bool
	TerminateDischargeAlarm bool
	RemainingCapacityAlarm  bool
	RemainingTimeAlarm      bool
	Initialized             bool
	Discharging             bool
	FullyCharged            bool
	FullyDischarged         bool
	Error                   StatusError
}

// StatusError is the low nibble of BatteryStatus.
type StatusError uint8

var statusErrorText = [...]string{
	"ok",
	"busy",
	"reserved command",
	"unsupported command",
	"access denied",
	"overflow/underflow",
	"bad size",
	"unknown error",
}

func (e StatusError) String() string {
	if int(e) < len(statusErrorText) {
		return statusErrorText[e]
	}
	return fmt.Sprintf("error %d", uint8(e))
}

// SpecInfo is the decoded SpecificationInfo register.
type SpecInfo struct {
	Raw      uint16
	Revision uint8
	Version  uint8
	VScale   uint32 // voltage multiplier
	IPScale  uint32 // current and capacity multiplier
}

// VersionName renders the version nibble.
func (s SpecInfo) VersionName() string {
	switch s.Version {
	case 1:
		return "1.0"
	case 2:
		return "1.1"
	case 3:
		return "1.1+PEC"
	}
	return "unknown"
}

// RevisionName renders the revision nibble.
func (s SpecInfo) RevisionName() string {
	if s.Revision == 1 {
		return "1.0/1.1"
	}
	return "unknown"
}

// Date is the decoded ManufactureDate register.
type Date struct {
	Day   uint8
	Month uint8
	Year  uint16
}

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// Text is an ASCII block string.
type Text struct{ S string }

func (*Raw) result() Result             { return ResultRaw }
func (*Word) result() Result            { return ResultWord }
func (*SignedWord) result() Result      { return ResultSignedWord }
func (*Long) result() Result            { return ResultLong }
func (*Quad) result() Result            { return ResultQuad }
func (*Flag) result() Result            { return ResultFlag }
func (*Temp) result() Result            { return ResultTemperature }
func (*BatteryModeBits) result() Result { return ResultBatteryMode }
func (*StatusBits) result() Result      { return ResultBatteryStatus }
func (*SpecInfo) result() Result        { return ResultSpecInfo }
func (*Date) result() Result            { return ResultDate }
func (*Text) result() Result            { return ResultText }

// NewOutput allocates the variant matching r. Raw outputs get room for a
// count byte plus the largest block.
func NewOutput(r Result) Output {
	switch r {
	case ResultWord:
		return &Word{}
	case ResultSignedWord:
		return &SignedWord{}
	case ResultLong:
		return &Long{}
	case ResultQuad:
		return &Quad{}
	case ResultFlag:
		return &Flag{}
	case ResultTemperature:
		return &Temp{}
	case ResultBatteryMode:
		return &BatteryModeBits{}
	case ResultBatteryStatus:
		return &StatusBits{}
	case ResultSpecInfo:
		return &SpecInfo{}
	case ResultDate:
		return &Date{}
	case ResultText:
		return &Text{}
	}
	return &Raw{Buf: make([]byte, 1+smbus.MaxBlockLen)}
}

func (r *Raw) decode(raw []byte, block bool) error {
	if !block {
		r.N = copy(r.Buf, raw)
		return nil
	}
	r.Buf[0] = byte(len(raw))
	r.N = 1 + copy(r.Buf[1:], raw)
	return nil
}

func decodeLE(raw []byte, n int) (uint64, error) {
	if len(raw) < n {
		return 0, &errcode.E{C: errcode.UnexpectedData, Op: "decode", Msg: "short payload"}
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	return v, nil
}

func (w *Word) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	w.V = uint16(v)
	return err
}

func (w *SignedWord) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	w.V = int16(uint16(v))
	return err
}

func (l *Long) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 4)
	l.V = uint32(v)
	return err
}

func (q *Quad) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 8)
	q.V = v
	return err
}

func (f *Flag) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	f.V = v != 0
	return err
}

func (t *Temp) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	if err != nil {
		return err
	}
	t.Kelvin = DecodeTemperature(uint16(v))
	return nil
}

func (m *BatteryModeBits) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	if err != nil {
		return err
	}
	*m = DecodeBatteryMode(uint16(v))
	return nil
}

func (s *StatusBits) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	if err != nil {
		return err
	}
	*s = DecodeStatus(uint16(v))
	return nil
}

func (s *SpecInfo) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	if err != nil {
		return err
	}
	*s = DecodeSpecInfo(uint16(v))
	return nil
}

func (d *Date) decode(raw []byte, _ bool) error {
	v, err := decodeLE(raw, 2)
	if err != nil {
		return err
	}
	*d = DecodeDate(uint16(v))
	return nil
}

func (t *Text) decode(raw []byte, _ bool) error {
	t.S = strings.TrimRight(string(raw), "\x00")
	return nil
}

// Pure register decoders.

// DecodeTemperature converts a signed 0.1 K reading to kelvin.
func DecodeTemperature(v uint16) float64 { return float64(int16(v)) / 10 }

func DecodeBatteryMode(v uint16) BatteryModeBits {
	return BatteryModeBits{
		Raw:                      v,
		InternalChargeController: v&modeInternalChargeController != 0,
		PrimaryBatterySupport:    v&modePrimaryBatterySupport != 0,
		ConditioningRequested:    v&modeConditioningFlag != 0,
		ChargeControllerEnabled:  v&modeChargeControllerEnabled != 0,
		PrimaryBattery:           v&modePrimaryBattery != 0,
		AlarmMode:                v&modeAlarmMode != 0,
		ChargerMode:              v&modeChargerMode != 0,
		CapacityMode:             v&modeCapacityMode != 0,
	}
}

func DecodeStatus(v uint16) StatusBits {
	return StatusBits{
		Raw:                     v,
		OverChargedAlarm:        v&stOverChargedAlarm != 0,
		TerminateChargeAlarm:    v&stTerminateChargeAlarm != 0,
		OverTempAlarm:           v&stOverTempAlarm != 0,
		TerminateDischargeAlarm: v&stTerminateDischargeAlarm != 0,
		RemainingCapacityAlarm:  v&stRemainingCapacityAlarm != 0,
		RemainingTimeAlarm:      v&stRemainingTimeAlarm != 0,
		Initialized:             v&stInitialized != 0,
		Discharging:             v&stDischarging != 0,
		FullyCharged:            v&stFullyCharged != 0,
		FullyDischarged:         v&stFullyDischarged != 0,
		Error:                   StatusError(v & stErrorMask),
	}
}

// DecodeSpecInfo unpacks revision (bits 0-3), version (4-7), VScale
// exponent (8-11) and IPScale exponent (12-15).
func DecodeSpecInfo(v uint16) SpecInfo {
	return SpecInfo{
		Raw:      v,
		Revision: uint8(v & 0x0F),
		Version:  uint8(v >> 4 & 0x0F),
		VScale:   pow10(uint8(v >> 8 & 0x0F)),
		IPScale:  pow10(uint8(v >> 12 & 0x0F)),
	}
}

func pow10(n uint8) uint32 {
	if n > 9 {
		return math.MaxUint32
	}
	p := uint32(1)
	for ; n > 0; n-- {
		p *= 10
	}
	return p
}

// DecodeDate unpacks day (bits 0-4), month (5-8) and year-1980 (9-15).
func DecodeDate(v uint16) Date {
	return Date{
		Day:   uint8(v & 0x1F),
		Month: uint8(v >> 5 & 0x0F),
		Year:  1980 + v>>9,
	}
}

// EncodeDate is the inverse of DecodeDate.
func EncodeDate(d Date) uint16 {
	return (d.Year-1980)<<9 | uint16(d.Month&0x0F)<<5 | uint16(d.Day&0x1F)
}
