package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detector_reports_received_total",
		Help: "Position reports consumed from the ingest topic",
	})
	ReportsDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detector_reports_decode_errors_total",
		Help: "Position reports that could not be decoded",
	})
	ReportsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_reports_skipped_total",
		Help: "Position reports not analyzed, by reason",
	}, []string{"reason"})
	ReportsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detector_reports_processed_total",
		Help: "Position reports analyzed",
	})
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_events_emitted_total",
		Help: "Detected events by type",
	}, []string{"type"})
	AnalyzerFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_analyzer_faults_total",
		Help: "Analyzer failures on a single report, by analyzer",
	}, []string{"analyzer"})
	ChannelDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_channel_drops_total",
		Help: "Items dropped because a pipeline channel was full",
	}, []string{"channel"})
	DBWriteSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_db_write_success_total",
		Help: "Rows written to TimescaleDB, by table",
	}, []string{"table"})
	DBWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_db_write_failures_total",
		Help: "Rows that could not be written to TimescaleDB, by table",
	}, []string{"table"})
	DeviceUpdateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detector_device_update_failures_total",
		Help: "Motion state write-backs that failed",
	})
	ProcessLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detector_process_latency_seconds",
		Help:    "Time spent analyzing one report",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
)

func ObserveProcessLatency(start time.Time) {
	ProcessLatency.Observe(time.Since(start).Seconds())
}
