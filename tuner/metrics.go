package tuner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_cycles_total",
			Help: "Total number of completed calculation cycles",
		},
	)

	cycleSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_cycle_skips_total",
			Help: "Total number of calculation ticks skipped for lack of data",
		},
	)

	noSignalTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_no_signal_total",
			Help: "Total number of cycles that found no signal",
		},
	)

	captureErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_capture_errors_total",
			Help: "Total number of failed capture reads",
		},
	)

	samplesPushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_samples_pushed_total",
			Help: "Total number of captured samples pushed before decimation",
		},
	)

	reconfigurationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tuner_reconfigurations_total",
			Help: "Total number of applied configuration changes",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tuner_cycle_duration_seconds",
			Help:    "Time spent in one calculation cycle",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	lastFrequency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuner_last_frequency_hz",
			Help: "Fundamental frequency of the latest cycle with signal",
		},
	)

	lastDeviation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuner_last_deviation_cents",
			Help: "Deviation from the nearest note of the latest cycle with signal",
		},
	)

	engineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tuner_engine_state",
			Help: "Engine state (0 idle, 1 running, 2 stopped)",
		},
	)
)
