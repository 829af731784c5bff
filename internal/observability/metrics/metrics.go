package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "powerplant_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	aggregationTotal    *prometheus.CounterVec
	aggregationLatency  *prometheus.HistogramVec
	aggregationRetries  prometheus.Counter
	aggregationConflict prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	reportUploads *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total reading ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total reading ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Reading ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		aggregationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_aggregation_total",
				Help: "Total daily summary recomputes by result",
			},
			[]string{"result"},
		)
		aggregationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "daily_aggregation_latency_seconds",
				Help:    "Daily summary recompute latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		aggregationRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_aggregation_retries_total",
				Help: "Total recompute retries after a version conflict",
			},
		)
		aggregationConflict = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "daily_aggregation_conflicts_total",
				Help: "Total recomputes abandoned after exhausting retries",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total summary exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Summary export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		reportUploads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_uploads_total",
				Help: "Total field report submissions by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			aggregationTotal,
			aggregationLatency,
			aggregationRetries,
			aggregationConflict,
			exportTotal,
			exportLatency,
			reportUploads,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauge := func(name, help, query string) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: metricPrefix + name, Help: help},
			func() float64 {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				var count float64
				if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
					if logger != nil {
						logger.Printf("metrics: %s query failed: %v", name, err)
					}
					return 0
				}
				return count
			},
		)
	}

	prometheus.MustRegister(
		gauge("machines_registered", "Registered machines", `SELECT COUNT(*) FROM machines`),
		gauge("plants_registered", "Registered plants", `SELECT COUNT(*) FROM plants`),
		gauge("readings_stored", "Stored load readings", `SELECT COUNT(*) FROM load_readings`),
	)
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveAggregation records recompute latency and result.
func ObserveAggregation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if aggregationTotal != nil {
		aggregationTotal.WithLabelValues(result).Inc()
	}
	if aggregationLatency != nil {
		aggregationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncAggregationRetry counts a recompute retry after a version conflict.
func IncAggregationRetry() {
	if aggregationRetries != nil {
		aggregationRetries.Inc()
	}
}

// IncAggregationConflict counts a recompute abandoned after retries.
func IncAggregationConflict() {
	if aggregationConflict != nil {
		aggregationConflict.Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncReportUpload counts a field report submission.
func IncReportUpload(result string) {
	if result == "" {
		result = resultSuccess
	}
	if reportUploads != nil {
		reportUploads.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
