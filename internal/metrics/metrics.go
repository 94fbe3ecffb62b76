// Package metrics exports SMBus transaction and battery telemetry to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
)

// Metrics implements smbus.Observer and holds the battery gauges updated by
// the poll loop.
type Metrics struct {
	// TxTotal counts transactions by protocol and result code.
	TxTotal *prometheus.CounterVec
	// TxDuration tracks transaction latency by protocol.
	TxDuration *prometheus.HistogramVec
	// PECErrors counts frames rejected on checksum.
	PECErrors prometheus.Counter

	// Value holds the last decoded reading per SBS command.
	Value *prometheus.GaugeVec
	// PollErrors counts failed poll batches by job and code.
	PollErrors *prometheus.CounterVec
	// Security is 1 for the current gauge security state.
	Security *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
// Panics if registration fails.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TxTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smbus_transactions_total",
				Help: "SMBus transactions by protocol and result",
			},
			[]string{"protocol", "result"},
		),
		TxDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smbus_transaction_duration_seconds",
				Help:    "SMBus transaction duration in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
			},
			[]string{"protocol"},
		),
		PECErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "smbus_pec_errors_total",
				Help: "Frames whose packet error code did not match",
			},
		),
		Value: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sbs_value",
				Help: "Last value read per SBS command, in the command's native unit",
			},
			[]string{"command"},
		),
		PollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbs_poll_errors_total",
				Help: "Failed poll batches by job and error code",
			},
			[]string{"job", "code"},
		),
		Security: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bq_security_state",
				Help: "1 for the gauge's current security state",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(m.TxTotal, m.TxDuration, m.PECErrors, m.Value, m.PollErrors, m.Security)
	return m
}

var _ smbus.Observer = (*Metrics)(nil)

func (m *Metrics) ObserveTx(p smbus.Protocol, _ uint8, d time.Duration, err error) {
	code := errcode.Of(err)
	m.TxTotal.WithLabelValues(p.String(), string(code)).Inc()
	m.TxDuration.WithLabelValues(p.String()).Observe(d.Seconds())
	if code == errcode.BadCRC {
		m.PECErrors.Inc()
	}
}

// Set records v for cmd.
func (m *Metrics) Set(cmd sbs.Command, v float64) {
	m.Value.WithLabelValues(cmd.String()).Set(v)
}

// ObserveInfo records the numeric fields of an info record.
func (m *Metrics) ObserveInfo(info sbs.Info) {
	m.Set(sbs.Temperature, info.TemperatureK)
	m.Set(sbs.CycleCount, float64(info.CycleCount))
	m.Set(sbs.Voltage, float64(info.Voltage))
	m.Set(sbs.RelativeStateOfCharge, float64(info.RelativeSOC))
	m.Set(sbs.RemainingCapacity, float64(info.RemainingCapacity))
	m.Set(sbs.BatteryStatus, float64(info.Status.Raw))
}

// PollFailed counts a failed batch.
func (m *Metrics) PollFailed(job string, err error) {
	m.PollErrors.WithLabelValues(job, string(errcode.Of(err))).Inc()
}

// SetSecurity marks state as current and clears the others.
func (m *Metrics) SetSecurity(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.Security.WithLabelValues(s).Set(v)
	}
}
