// Package metrics emits operational counters through the global telemetry
// system. These are ops metrics for dashboards and alerting; the product-facing
// analysis counters live in internal/stats.
package metrics

import (
	"time"

	"github.com/contractlens/contractlens/internal/observability"
)

// Metric names following Prometheus conventions.
var (
	AnalysesTotal      = "app_analyses_total"
	ExtractionsTotal   = "app_extractions_total"
	ExtractionDuration = "app_extraction_duration_ms"
	ModelCallsTotal    = "app_model_calls_total"
	ModelCallDuration  = "app_model_call_duration_ms"
	StatsFallbackTotal = "app_stats_fallback_total"
)

// RecordAnalysis records a completed analysis with its terminal outcome.
func RecordAnalysis(outcome string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		AnalysesTotal,
		1,
		map[string]string{"outcome": outcome},
	)
}

// RecordExtraction records one extraction pass with its detected format and
// whether the OCR fallback ran.
func RecordExtraction(format string, usedOCR bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	ocr := "false"
	if usedOCR {
		ocr = "true"
	}
	labels := map[string]string{"format": format, "ocr": ocr}

	_ = observability.TelemetrySystem.Counter(ExtractionsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(ExtractionDuration, duration, labels)
}

// RecordModelCall records one upstream model call.
func RecordModelCall(driver string, success bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	labels := map[string]string{"driver": driver, "status": status}

	_ = observability.TelemetrySystem.Counter(ModelCallsTotal, 1, labels)
	_ = observability.TelemetrySystem.Histogram(ModelCallDuration, duration, labels)
}

// RecordStatsFallback records a stats write that fell through to the in-memory
// backend after a Redis failure.
func RecordStatsFallback() {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(StatsFallbackTotal, 1, nil)
}
