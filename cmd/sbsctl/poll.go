package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartbattery-go/drivers/bq"
	"smartbattery-go/drivers/sbs"
	"smartbattery-go/internal/metrics"
	"smartbattery-go/internal/poll"
)

const (
	jobTelemetry = "telemetry"
	jobInfo      = "info"
)

// telemetry is the fast-changing set read every poll interval.
var telemetry = []sbs.Command{
	sbs.Voltage,
	sbs.Current,
	sbs.AverageCurrent,
	sbs.Temperature,
	sbs.RelativeStateOfCharge,
	sbs.AbsoluteStateOfCharge,
	sbs.RemainingCapacity,
	sbs.FullChargeCapacity,
	sbs.RunTimeToEmpty,
	sbs.AverageTimeToFull,
	sbs.BatteryStatus,
	sbs.ChargingCurrent,
	sbs.ChargingVoltage,
}

var securityStates = []string{bq.Sealed.String(), bq.Unsealed.String(), bq.FullAccess.String(), bq.StateUnknown.String()}

type poller struct {
	bat   *sbs.Battery
	gauge *bq.Gauge // nil unless --gauge
	m     *metrics.Metrics
	log   *zap.Logger
}

func newPollCmd(a *app) *cobra.Command {
	var (
		count int
		gauge bool
	)
	c := &cobra.Command{
		Use:   "poll",
		Short: "Poll battery telemetry and export it to Prometheus",
		Long: `Read the telemetry registers every poll.interval and the info record
every poll.info_interval, updating the sbs_value gauges. With
metrics.enabled the registry is served on metrics.listen at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			m := metrics.New(reg)
			a.metrics = m
			a.observer = m

			bat, bus, err := a.openBattery()
			if err != nil {
				return err
			}
			defer bus.Close()

			p := &poller{bat: bat, m: m, log: a.log.Named("poll")}
			if gauge {
				p.gauge = bq.New(bat)
			}

			if a.cfg.Metrics.Enabled {
				srv := &http.Server{
					Addr:              a.cfg.Metrics.Listen,
					Handler:           metricsMux(reg),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server failed", zap.Error(err))
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
				a.log.Info("serving metrics", zap.String("listen", a.cfg.Metrics.Listen))
			}

			return p.run(ctx, a.cfg.Poll.Interval, a.cfg.Poll.InfoInterval, a.cfg.Poll.Jitter, count)
		},
	}
	c.Flags().IntVar(&count, "count", 0, "stop after this many jobs (0 runs until interrupted)")
	c.Flags().BoolVar(&gauge, "gauge", false, "also export the bq security state")
	return c
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// run does one pass of every job up front and then follows the scheduler.
func (p *poller) run(ctx context.Context, every, infoEvery, jitter time.Duration, count int) error {
	ticks := make(chan poll.Tick, 4)
	s := poll.NewScheduler(ticks)
	s.Every(jobTelemetry, every, jitter)
	if infoEvery > 0 {
		s.Every(jobInfo, infoEvery, jitter)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(ctx)

	done := 0
	runJob := func(job string) bool {
		start := time.Now()
		err := p.do(job)
		if wait := s.Report(job, time.Since(start), err); wait > 0 && err != nil {
			p.log.Info("backing off", zap.String("job", job), zap.Duration("next_in", wait))
		}
		done++
		return count > 0 && done >= count
	}

	p.log.Info("polling", zap.Duration("interval", every), zap.Duration("info_interval", infoEvery))
	if runJob(jobTelemetry) {
		return nil
	}
	if infoEvery > 0 && runJob(jobInfo) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			p.log.Info("polling stopped")
			return nil
		case t := <-ticks:
			if t.Missed > 0 {
				p.log.Debug("ticks dropped", zap.String("job", t.Job), zap.Int("missed", t.Missed))
			}
			if runJob(t.Job) {
				return nil
			}
		}
	}
}

func (p *poller) do(job string) error {
	var err error
	switch job {
	case jobTelemetry:
		err = p.telemetry()
	case jobInfo:
		err = p.info()
	}
	if err != nil {
		p.m.PollFailed(job, err)
		p.log.Warn("poll failed", zap.String("job", job), zap.Error(err))
	}
	return err
}

func (p *poller) telemetry() error {
	reqs := make([]sbs.Request, len(telemetry))
	for i, c := range telemetry {
		d, _ := sbs.Lookup(c)
		reqs[i] = sbs.Request{Cmd: c, Out: sbs.NewOutput(d.Result)}
	}
	failed, err := p.bat.RunCommandBulk(reqs)
	n := len(reqs)
	if failed >= 0 {
		n = failed
	}
	for _, r := range reqs[:n] {
		if v, ok := numeric(r.Out); ok {
			p.m.Set(r.Cmd, v)
		}
	}
	return err
}

func (p *poller) info() error {
	info, err := p.bat.ReadInfo()
	if err != nil {
		return err
	}
	p.m.ObserveInfo(info)
	p.log.Debug("info",
		zap.String("device", info.Name),
		zap.Uint16("serial", info.SerialNumber),
		zap.Uint16("cycles", info.CycleCount))

	if p.gauge == nil {
		return nil
	}
	st, err := p.gauge.SecurityState()
	if err != nil {
		return err
	}
	p.m.SetSecurity(st.String(), securityStates)
	return nil
}
