package sbs

import "smartbattery-go/drivers/smbus"

// Typed wrappers over RunCommand, one per table entry.

func (b *Battery) readU16(c Command) (uint16, error) {
	var w Word
	err := b.RunCommand(c, nil, &w)
	return w.V, err
}

func (b *Battery) readS16(c Command) (int16, error) {
	var w SignedWord
	err := b.RunCommand(c, nil, &w)
	return w.V, err
}

func (b *Battery) writeU16(c Command, v uint16) error {
	return b.RunCommand(c, []byte{byte(v), byte(v >> 8)}, nil)
}

func (b *Battery) readText(c Command) (string, error) {
	var t Text
	err := b.RunCommand(c, nil, &t)
	return t.S, err
}

// blockExchange runs a block-returning exchange and strips the count byte.
func (b *Battery) blockExchange(c Command, sub uint16) ([]byte, error) {
	r := Raw{Buf: make([]byte, 1+smbus.MaxBlockLen)}
	if err := b.RunCommand(c, []byte{byte(sub), byte(sub >> 8)}, &r); err != nil {
		return nil, err
	}
	if r.N < 1 {
		return nil, nil
	}
	return append([]byte(nil), r.Buf[1:r.N]...), nil
}

// ManufacturerAccess writes sub to ManufacturerAccess and returns the block
// the gauge then exposes in ManufacturerData.
func (b *Battery) ManufacturerAccess(sub uint16) ([]byte, error) {
	return b.blockExchange(ManufacturerAccess, sub)
}

// ManufacturerBlockAccess is the block-wrapped MAC used by newer bq gauges.
func (b *Battery) ManufacturerBlockAccess(sub uint16) ([]byte, error) {
	return b.blockExchange(ManufacturerBlockAccess, sub)
}

// WriteManufacturerAccess writes a bare MAC word with no read-back.
func (b *Battery) WriteManufacturerAccess(v uint16) error {
	return b.bus.WriteWord(b.addr, regManufacturerAccess, v)
}

func (b *Battery) ReadRemainingCapacityAlarm() (uint16, error) {
	return b.readU16(RemainingCapacityAlarm)
}

func (b *Battery) WriteRemainingCapacityAlarm(v uint16) error {
	return b.writeU16(RemainingCapacityAlarm, v)
}

// ReadRemainingTimeAlarm returns the alarm threshold in minutes.
func (b *Battery) ReadRemainingTimeAlarm() (uint16, error) {
	return b.readU16(RemainingTimeAlarm)
}

func (b *Battery) WriteRemainingTimeAlarm(minutes uint16) error {
	return b.writeU16(RemainingTimeAlarm, minutes)
}

func (b *Battery) ReadBatteryMode() (BatteryModeBits, error) {
	var m BatteryModeBits
	err := b.RunCommand(BatteryMode, nil, &m)
	return m, err
}

func (b *Battery) WriteBatteryMode(v uint16) error {
	return b.writeU16(BatteryMode, v)
}

// ReadAtRate returns the AtRate value (mA or 10 mW, signed).
func (b *Battery) ReadAtRate() (int16, error) { return b.readS16(AtRate) }

func (b *Battery) WriteAtRate(v int16) error { return b.writeU16(AtRate, uint16(v)) }

func (b *Battery) ReadAtRateTimeToFull() (uint16, error)  { return b.readU16(AtRateTimeToFull) }
func (b *Battery) ReadAtRateTimeToEmpty() (uint16, error) { return b.readU16(AtRateTimeToEmpty) }

func (b *Battery) ReadAtRateOK() (bool, error) {
	var f Flag
	err := b.RunCommand(AtRateOK, nil, &f)
	return f.V, err
}

func (b *Battery) ReadTemperature() (Temp, error) {
	var t Temp
	err := b.RunCommand(Temperature, nil, &t)
	return t, err
}

// ReadVoltage returns the pack voltage in mV.
func (b *Battery) ReadVoltage() (uint16, error) { return b.readU16(Voltage) }

// ReadCurrent returns the pack current in mA; negative while discharging.
func (b *Battery) ReadCurrent() (int16, error) { return b.readS16(Current) }

func (b *Battery) ReadAverageCurrent() (int16, error)         { return b.readS16(AverageCurrent) }
func (b *Battery) ReadMaxError() (uint16, error)              { return b.readU16(MaxError) }
func (b *Battery) ReadRelativeStateOfCharge() (uint16, error) { return b.readU16(RelativeStateOfCharge) }
func (b *Battery) ReadAbsoluteStateOfCharge() (uint16, error) { return b.readU16(AbsoluteStateOfCharge) }
func (b *Battery) ReadRemainingCapacity() (uint16, error)     { return b.readU16(RemainingCapacity) }
func (b *Battery) ReadFullChargeCapacity() (uint16, error)    { return b.readU16(FullChargeCapacity) }
func (b *Battery) ReadRunTimeToEmpty() (uint16, error)        { return b.readU16(RunTimeToEmpty) }
func (b *Battery) ReadAverageTimeToEmpty() (uint16, error)    { return b.readU16(AverageTimeToEmpty) }
func (b *Battery) ReadAverageTimeToFull() (uint16, error)     { return b.readU16(AverageTimeToFull) }
func (b *Battery) ReadChargingCurrent() (uint16, error)       { return b.readU16(ChargingCurrent) }
func (b *Battery) ReadChargingVoltage() (uint16, error)       { return b.readU16(ChargingVoltage) }
func (b *Battery) ReadCycleCount() (uint16, error)            { return b.readU16(CycleCount) }
func (b *Battery) ReadDesignCapacity() (uint16, error)        { return b.readU16(DesignCapacity) }
func (b *Battery) ReadDesignVoltage() (uint16, error)         { return b.readU16(DesignVoltage) }
func (b *Battery) ReadSerialNumber() (uint16, error)          { return b.readU16(SerialNumber) }
func (b *Battery) ReadManufacturerName() (string, error)      { return b.readText(ManufacturerName) }
func (b *Battery) ReadDeviceName() (string, error)            { return b.readText(DeviceName) }
func (b *Battery) ReadDeviceChemistry() (string, error)       { return b.readText(DeviceChemistry) }
func (b *Battery) ReadSpecificationInfo() (SpecInfo, error)   { return readAs[SpecInfo](b, SpecificationInfo) }
func (b *Battery) ReadManufactureDate() (Date, error)         { return readAs[Date](b, ManufactureDate) }
func (b *Battery) ReadBatteryStatus() (StatusBits, error)     { return readAs[StatusBits](b, BatteryStatus) }
func (b *Battery) ReadAlarmWarning() (StatusBits, error)      { return readAs[StatusBits](b, AlarmWarning) }

// ReadManufacturerDataRaw stores the count-prefixed block in dst.
func (b *Battery) ReadManufacturerDataRaw(dst []byte) (int, error) {
	return b.readRaw(ManufacturerData, dst)
}

// ReadManufacturerData returns the ManufacturerData block payload.
func (b *Battery) ReadManufacturerData() ([]byte, error) {
	buf := make([]byte, 1+smbus.MaxBlockLen)
	n, err := b.readRaw(ManufacturerData, buf)
	if err != nil || n < 1 {
		return nil, err
	}
	return buf[1:n], nil
}

func (b *Battery) readRaw(c Command, dst []byte) (int, error) {
	r := Raw{Buf: dst}
	err := b.RunCommand(c, nil, &r)
	return r.N, err
}

// readAs decodes into a value-typed output.
func readAs[T any, P interface {
	*T
	Output
}](b *Battery, c Command) (T, error) {
	var v T
	err := b.RunCommand(c, nil, P(&v))
	return v, err
}
