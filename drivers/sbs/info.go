package sbs

// Info is the device record filled by ReadInfo.
type Info struct {
	Status            StatusBits
	ManufactureDate   Date
	SerialNumber      uint16
	Name              string
	Chemistry         string
	Manufacturer      string
	Spec              SpecInfo
	TemperatureK      float64
	TemperatureC      float64
	CycleCount        uint16
	Voltage           uint16 // mV
	RelativeSOC       uint16 // %
	RemainingCapacity uint16 // mAh or 10 mWh, see BatteryMode.CapacityMode
}

// ReadInfo reads the identity and state summary in one batch. On failure
// the fields read before the failing command are kept and returned with the
// error. The record is also cached on the Battery.
func (b *Battery) ReadInfo() (Info, error) {
	var (
		status                  StatusBits
		date                    Date
		serial, cycles, voltage Word
		rsoc, remaining         Word
		name, chem, maker       Text
		spec                    SpecInfo
		temp                    Temp
	)
	reqs := []Request{
		{Cmd: BatteryStatus, Out: &status},
		{Cmd: ManufactureDate, Out: &date},
		{Cmd: SerialNumber, Out: &serial},
		{Cmd: DeviceName, Out: &name},
		{Cmd: DeviceChemistry, Out: &chem},
		{Cmd: ManufacturerName, Out: &maker},
		{Cmd: SpecificationInfo, Out: &spec},
		{Cmd: Temperature, Out: &temp},
		{Cmd: CycleCount, Out: &cycles},
		{Cmd: Voltage, Out: &voltage},
		{Cmd: RelativeStateOfCharge, Out: &rsoc},
		{Cmd: RemainingCapacity, Out: &remaining},
	}
	const tempIdx = 7

	failed, err := b.RunCommandBulk(reqs)
	info := Info{
		Status:            status,
		ManufactureDate:   date,
		SerialNumber:      serial.V,
		Name:              name.S,
		Chemistry:         chem.S,
		Manufacturer:      maker.S,
		Spec:              spec,
		TemperatureK:      temp.Kelvin,
		CycleCount:        cycles.V,
		Voltage:           voltage.V,
		RelativeSOC:       rsoc.V,
		RemainingCapacity: remaining.V,
	}
	if failed < 0 || failed > tempIdx {
		info.TemperatureC = temp.Celsius()
	}
	b.info = info
	return info, err
}
