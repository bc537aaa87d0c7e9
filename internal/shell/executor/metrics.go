package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExportsCurrentlyStepping tracks the number of steps currently being executed
	ExportsCurrentlyStepping = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "export_steps_currently_running",
		Help: "The number of export steps currently being executed",
	})

	ExportsPlanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_planned_total",
		Help: "Export jobs planned, by format",
	}, []string{"format"})

	ExportSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_steps_total",
		Help: "Export steps executed, by result",
	}, []string{"result"})

	ExportRowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_rows_written_total",
		Help: "Rows written to export artifacts",
	})

	ExportsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_finalized_total",
		Help: "Export jobs finalized, by outcome and reason",
	}, []string{"status", "reason"})

	ExportStepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_step_duration_seconds",
		Help:    "Duration of one export step",
		Buckets: prometheus.DefBuckets,
	})
)
