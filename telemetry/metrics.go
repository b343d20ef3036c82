// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SendsAttempted prometheus.Counter
	SendsSucceeded prometheus.Counter
	SendsFailed    prometheus.Counter
	ProbesRun      prometheus.Counter
	ProbesFailed   prometheus.Counter
	ScheduleFires  prometheus.Counter
	Dispatches     prometheus.Counter

	// Histograms (seconds)
	SendDuration  prometheus.Observer
	ProbeDuration prometheus.Observer

	// Gauges
	BotsTotalGauge     prometheus.Gauge
	BotsAvailableGauge prometheus.Gauge
	ScheduleArmedGauge prometheus.Gauge // 1=armed,0=disabled
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SendsAttempted = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_sends_attempted_total", Help: "Number of bot message sends attempted"})
		SendsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_sends_succeeded_total", Help: "Number of bot message sends succeeded"})
		SendsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_sends_failed_total", Help: "Number of bot message sends failed"})
		ProbesRun = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_probes_total", Help: "Number of bot connectivity probes run"})
		ProbesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_probes_failed_total", Help: "Number of probes that came back unavailable"})
		ScheduleFires = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_schedule_fires_total", Help: "Number of scheduled dispatch fires"})
		Dispatches = promauto.NewCounter(prometheus.CounterOpts{Name: "chatfleet_dispatches_total", Help: "Number of dispatch engine invocations"})
		SendDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatfleet_send_duration_seconds", Help: "Single-bot send duration seconds", Buckets: prometheus.DefBuckets})
		ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatfleet_probe_duration_seconds", Help: "Connectivity probe duration seconds", Buckets: prometheus.DefBuckets})
		BotsTotalGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatfleet_bots_total", Help: "Number of loaded bot identities"})
		BotsAvailableGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatfleet_bots_available", Help: "Number of bots whose last probe succeeded"})
		ScheduleArmedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chatfleet_schedule_armed", Help: "Scheduler armed=1 disabled=0"})
	})
}

// UpdateScheduleGauge sets gauge to 1 if armed else 0.
func UpdateScheduleGauge(armed bool) {
	if ScheduleArmedGauge != nil {
		if armed {
			ScheduleArmedGauge.Set(1)
		} else {
			ScheduleArmedGauge.Set(0)
		}
	}
}

// SetBotCounts records how many bots are loaded and how many are reachable.
func SetBotCounts(total, available int) {
	if BotsTotalGauge != nil {
		BotsTotalGauge.Set(float64(total))
	}
	if BotsAvailableGauge != nil {
		BotsAvailableGauge.Set(float64(available))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
