package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"tinygo.org/x/drivers"

	"smartbattery-go/drivers/bq"
	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus/smbustest"
	"smartbattery-go/errcode"
	"smartbattery-go/internal/metrics"
)

type harness struct {
	app    *app
	out    *bytes.Buffer
	sim    *smbustest.Bus
	dev    *smbustest.Device
	sleeps []time.Duration
}

// newHarness wires the CLI to a simulated battery at the default address.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{out: &bytes.Buffer{}, sim: smbustest.New()}
	h.dev = smbustest.NewDevice(sbs.AddressDefault, false)
	h.sim.Attach(sbs.AddressDefault, h.dev)

	// Temperature 298.1 K, Current -500 mA, status INIT|DSG, SBS 1.1.
	h.dev.SetWord(0x08, 2981)
	h.dev.SetWord(0x09, 12000)
	h.dev.SetWord(0x0A, 0xFE0C)
	h.dev.SetWord(0x0D, 87)
	h.dev.SetWord(0x0F, 4200)
	h.dev.SetWord(0x16, 0x00C0)
	h.dev.SetWord(0x17, 12)
	h.dev.SetWord(0x1A, 0x0021)
	h.dev.SetWord(0x1B, sbs.EncodeDate(sbs.Date{Year: 2024, Month: 3, Day: 9}))
	h.dev.SetWord(0x1C, 4321)
	h.dev.SetBlock(0x20, []byte("Texas Inst"))
	h.dev.SetBlock(0x21, []byte("bq40z50"))
	h.dev.SetBlock(0x22, []byte("LION"))
	h.dev.SetBlock(sbs.RegManufacturerData, []byte{0xAA})

	h.app = newApp(h.out)
	h.app.log = zaptest.NewLogger(t)
	h.app.dial = func(string) (drivers.I2C, error) { return h.sim, nil }
	h.app.sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	return h
}

func (h *harness) run(args ...string) error {
	root := newRootCmd(h.app)
	root.SetArgs(args)
	root.SetErr(io.Discard)
	return root.Execute()
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("version"))
	assert.Contains(t, h.out.String(), "sbsctl dev")
}

func TestBuses(t *testing.T) {
	h := newHarness(t)
	h.app.buses = func() ([]string, error) { return []string{"I2C0", "I2C1"}, nil }
	require.NoError(t, h.run("buses"))
	assert.Equal(t, "I2C0\nI2C1\n", h.out.String())
}

func TestCommandsListsTable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("commands"))
	out := h.out.String()
	for _, c := range sbs.Commands() {
		assert.Contains(t, out, c.String())
	}
	assert.Contains(t, out, "exchange 0x00>0x23")
	assert.Empty(t, h.sim.Log())
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("info"))
	out := h.out.String()
	for _, want := range []string{"Texas Inst", "bq40z50", "LION", "4321", "2024-03-09", "12000 mV", "87 %", "INIT,DSG", "SBS 1.1 rev 1.0/1.1"} {
		assert.Contains(t, out, want)
	}
	assert.True(t, h.sim.Closed())
}

func TestInfoAbsentBattery(t *testing.T) {
	h := newHarness(t)
	err := h.run("info", "--address", "0x0c")
	require.Error(t, err)
	assert.Equal(t, errcode.Fail, errcode.Of(err))
	assert.True(t, errors.Is(err, errcode.AddrWriteNack))
	// The partial record is still printed.
	assert.Contains(t, h.out.String(), "Manufacturer")
}

func TestReadByName(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("read", "voltage", "Current", "temperature"))
	out := h.out.String()
	assert.Contains(t, out, "12000")
	assert.Contains(t, out, "-500")
	assert.Contains(t, out, "298.1 K")
}

func TestReadWithPEC(t *testing.T) {
	h := newHarness(t)
	h.dev.PEC = true
	require.NoError(t, h.run("read", "--pec", "Voltage"))
	assert.Contains(t, h.out.String(), "12000")
}

func TestReadAll(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("read", "--all"))
	out := h.out.String()
	assert.Contains(t, out, "RelativeStateOfCharge")
	assert.NotContains(t, out, "ManufacturerAccess")
}

func TestReadRejectsBadNames(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown", []string{"read", "Bogus"}, "unknown command"},
		{"needs input", []string{"read", "ManufacturerAccess"}, "needs an input"},
		{"nothing", []string{"read"}, "--all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, h.sim.Log())
		})
	}
}

func TestWriteReadsBack(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("write", "RemainingCapacityAlarm", "300"))
	assert.Equal(t, uint16(300), h.dev.Word(0x01))
	assert.Equal(t, "RemainingCapacityAlarm = 300\n", h.out.String())
}

func TestWriteSigned(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("write", "AtRate", "--", "-100"))
	assert.Equal(t, uint16(0xFF9C), h.dev.Word(0x04))
	assert.Equal(t, "AtRate = -100\n", h.out.String())
}

func TestWriteRejects(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.run("write", "Voltage", "1"))
	assert.Error(t, h.run("write", "AtRate", "70000"))
	assert.Empty(t, h.sim.Log())
}

func TestParseWord(t *testing.T) {
	for in, want := range map[string]uint16{"0": 0, "65535": 0xFFFF, "-1": 0xFFFF, "0x6001": 0x6001, "-32768": 0x8000} {
		got, err := parseWord(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "65536", "-32769", "ten"} {
		_, err := parseWord(in)
		assert.Error(t, err, in)
	}
}

func TestScan(t *testing.T) {
	h := newHarness(t)
	h.sim.Attach(0x40, smbustest.NewDevice(0x40, false))
	require.NoError(t, h.run("scan"))
	assert.Equal(t, "0x0b 0x40\n", h.out.String())
	assert.Len(t, h.sim.Log(), scanLast-scanFirst+1)
	// Each address gets a one-byte read so the adapter always sees a frame.
	for _, tx := range h.sim.Log() {
		assert.Empty(t, tx.W)
		assert.Len(t, tx.R, 1)
	}
}

// macReplies answers ManufacturerAccess sub-commands from a map.
func macReplies(h *harness, replies map[uint16][]byte) {
	h.dev.OnWrite = func(cmd uint8, data []byte) {
		if cmd != sbs.RegManufacturerAccess {
			return
		}
		h.dev.SetBlock(sbs.RegManufacturerData, replies[uint16(data[0])|uint16(data[1])<<8])
	}
}

func TestMAC(t *testing.T) {
	h := newHarness(t)
	macReplies(h, map[uint16][]byte{0x0002: {0x10, 0x20}})
	require.NoError(t, h.run("mac", "0x0002"))
	assert.Equal(t, "1020\n", h.out.String())
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	macReplies(h, map[uint16][]byte{bq.MACOperationStatus: {0x08, 0x01, 0x00}})
	require.NoError(t, h.run("status"))
	assert.Equal(t, "sealed\n", h.out.String())
}

func TestUnsealWithWords(t *testing.T) {
	h := newHarness(t)
	status := []byte{0x08, 0x01, 0x00}
	var words []uint16
	h.dev.OnWrite = func(cmd uint8, data []byte) {
		if cmd != sbs.RegManufacturerAccess {
			return
		}
		switch sub := uint16(data[0]) | uint16(data[1])<<8; sub {
		case bq.MACOperationStatus:
			h.dev.SetBlock(sbs.RegManufacturerData, status)
		default:
			words = append(words, sub)
			if n := len(words); n >= 2 && words[n-2] == bq.DefaultUnsealKey[0] && words[n-1] == bq.DefaultUnsealKey[1] {
				status = []byte{0x00, 0x01, 0x00}
			}
		}
	}
	require.NoError(t, h.run("unseal"))
	assert.Equal(t, "unsealed\n", h.out.String())
	assert.Equal(t, []uint16{0x0414, 0x3672}, words)
	assert.Equal(t, []time.Duration{bq.KeyGap, bq.Settle}, h.sleeps)
}

func TestSHA1NeedsKey(t *testing.T) {
	h := newHarness(t)
	err := h.run("full-access", "--sha1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SHA-1 key")
	assert.Empty(t, h.sim.Log())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sbs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const fastPoll = `
poll:
  interval: 5ms
  info_interval: 1h
  jitter: 0s
`

func TestPollUpdatesMetrics(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("poll", "--config", writeConfig(t, fastPoll), "--count", "3"))

	m := h.app.metrics
	require.NotNil(t, m)
	assert.Equal(t, 12000.0, testutil.ToFloat64(m.Value.WithLabelValues("Voltage")))
	assert.Equal(t, -500.0, testutil.ToFloat64(m.Value.WithLabelValues("Current")))
	assert.InDelta(t, 298.1, testutil.ToFloat64(m.Value.WithLabelValues("Temperature")), 1e-9)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.Value.WithLabelValues("CycleCount")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.PollErrors))
	assert.Positive(t, testutil.ToFloat64(m.TxTotal.WithLabelValues("read_word", "ok")))
}

func TestPollCountsFailures(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("poll", "--config", writeConfig(t, fastPoll), "--address", "0x0c", "--count", "2"))

	m := h.app.metrics
	require.NotNil(t, m)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollErrors.WithLabelValues(jobTelemetry, "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollErrors.WithLabelValues(jobInfo, "fail")))
}

func TestPollBacksOffAbsentBattery(t *testing.T) {
	h := newHarness(t)
	core, logs := observer.New(zap.InfoLevel)
	h.app.log = zap.New(core)
	require.NoError(t, h.run("poll", "--config", writeConfig(t, fastPoll), "--address", "0x0c", "--count", "2"))

	backoffs := logs.FilterMessage("backing off").All()
	require.Len(t, backoffs, 2)
	assert.Equal(t, jobTelemetry, backoffs[0].ContextMap()["job"])
	assert.Equal(t, 10*time.Millisecond, backoffs[0].ContextMap()["next_in"])
	assert.Equal(t, jobInfo, backoffs[1].ContextMap()["job"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Set(sbs.Voltage, 11800)

	srv := httptest.NewServer(metricsMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `sbs_value{command="Voltage"} 11800`))
}
