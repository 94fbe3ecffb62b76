package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"smartbattery-go/drivers/sbs"
)

// printTable writes rows under headers without borders.
func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

// formatOutput renders a decoded command result for humans.
func formatOutput(o sbs.Output) string {
	switch v := o.(type) {
	case *sbs.Word:
		return strconv.FormatUint(uint64(v.V), 10)
	case *sbs.SignedWord:
		return strconv.FormatInt(int64(v.V), 10)
	case *sbs.Long:
		return strconv.FormatUint(uint64(v.V), 10)
	case *sbs.Quad:
		return strconv.FormatUint(v.V, 10)
	case *sbs.Flag:
		return strconv.FormatBool(v.V)
	case *sbs.Temp:
		return fmt.Sprintf("%.1f K (%.1f °C)", v.Kelvin, v.Celsius())
	case *sbs.BatteryModeBits:
		return modeString(*v)
	case *sbs.StatusBits:
		return statusString(*v)
	case *sbs.SpecInfo:
		return fmt.Sprintf("SBS %s rev %s, VScale %d, IPScale %d", v.VersionName(), v.RevisionName(), v.VScale, v.IPScale)
	case *sbs.Date:
		return v.String()
	case *sbs.Text:
		return strconv.Quote(v.S)
	case *sbs.Raw:
		return hex.EncodeToString(v.Bytes())
	}
	return fmt.Sprintf("%v", o)
}

// numeric extracts a gauge value, when the output has one.
func numeric(o sbs.Output) (float64, bool) {
	switch v := o.(type) {
	case *sbs.Word:
		return float64(v.V), true
	case *sbs.SignedWord:
		return float64(v.V), true
	case *sbs.Long:
		return float64(v.V), true
	case *sbs.Quad:
		return float64(v.V), true
	case *sbs.Flag:
		if v.V {
			return 1, true
		}
		return 0, true
	case *sbs.Temp:
		return v.Kelvin, true
	case *sbs.BatteryModeBits:
		return float64(v.Raw), true
	case *sbs.StatusBits:
		return float64(v.Raw), true
	}
	return 0, false
}

func flags(pairs ...any) string {
	var set []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1].(bool) {
			set = append(set, pairs[i].(string))
		}
	}
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}

func statusString(s sbs.StatusBits) string {
	return fmt.Sprintf("0x%04x [%s] error=%s", s.Raw, flags(
		"OCA", s.OverChargedAlarm,
		"TCA", s.TerminateChargeAlarm,
		"OTA", s.OverTempAlarm,
		"TDA", s.TerminateDischargeAlarm,
		"RCA", s.RemainingCapacityAlarm,
		"RTA", s.RemainingTimeAlarm,
		"INIT", s.Initialized,
		"DSG", s.Discharging,
		"FC", s.FullyCharged,
		"FD", s.FullyDischarged,
	), s.Error)
}

func modeString(m sbs.BatteryModeBits) string {
	return fmt.Sprintf("0x%04x [%s]", m.Raw, flags(
		"ICC", m.InternalChargeController,
		"PBS", m.PrimaryBatterySupport,
		"CF", m.ConditioningRequested,
		"CC", m.ChargeControllerEnabled,
		"PB", m.PrimaryBattery,
		"AM", m.AlarmMode,
		"CHGM", m.ChargerMode,
		"CAPM", m.CapacityMode,
	))
}

func infoRows(info sbs.Info) [][]string {
	return [][]string{
		{"Manufacturer", info.Manufacturer},
		{"Device", info.Name},
		{"Chemistry", info.Chemistry},
		{"Serial", strconv.FormatUint(uint64(info.SerialNumber), 10)},
		{"Manufactured", info.ManufactureDate.String()},
		{"Specification", fmt.Sprintf("SBS %s rev %s", info.Spec.VersionName(), info.Spec.RevisionName())},
		{"Status", statusString(info.Status)},
		{"Temperature", fmt.Sprintf("%.1f °C", info.TemperatureC)},
		{"Voltage", fmt.Sprintf("%d mV", info.Voltage)},
		{"Charge", fmt.Sprintf("%d %%", info.RelativeSOC)},
		{"Remaining", strconv.FormatUint(uint64(info.RemainingCapacity), 10)},
		{"Cycles", strconv.FormatUint(uint64(info.CycleCount), 10)},
	}
}
