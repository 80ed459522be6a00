// Package metrics exposes Prometheus collectors for pipeline runs. Each run
// owns a registry and may push it to a Pushgateway when it finishes.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// Page outcome labels.
const (
	PageSuccess = "success"
	PageFailed  = "failed"
	PageEmpty   = "empty"
)

// Recorder holds the collectors of one pipeline run.
type Recorder struct {
	registry *prometheus.Registry

	pagesTotal             *prometheus.CounterVec
	pageDurationSeconds    prometheus.Histogram
	rawRecordsTotal        *prometheus.CounterVec
	rateLimitDelaysSeconds *prometheus.HistogramVec
	transformRecordsTotal  *prometheus.CounterVec
	loadRecordsTotal       *prometheus.CounterVec
	loadCollisionsTotal    prometheus.Counter
	lastSuccessTimestamp   *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobhunter_pages_total",
				Help: "Total number of search pages harvested, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		pageDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobhunter_page_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		rawRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobhunter_raw_records_total",
				Help: "Total number of harvested records, labeled by whether they reached the raw store.",
			},
			[]string{"status"},
		),
		rateLimitDelaysSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobhunter_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		),
		transformRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobhunter_transform_records_total",
				Help: "Total number of raw records processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		loadRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobhunter_load_records_total",
				Help: "Total number of records upserted, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		loadCollisionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobhunter_load_collisions_total",
				Help: "Records sharing a primary key with an earlier record of the same batch.",
			},
		),
		lastSuccessTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobhunter_last_success_timestamp_seconds",
				Help: "Unix time of the last stage that completed without total failure.",
			},
			[]string{"stage"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePage records one harvested page.
func (r *Recorder) ObservePage(outcome jobs.PageOutcome) {
	switch {
	case outcome.Err != nil:
		r.pagesTotal.WithLabelValues(PageFailed).Inc()
	case len(outcome.Records) == 0:
		r.pagesTotal.WithLabelValues(PageEmpty).Inc()
	default:
		r.pagesTotal.WithLabelValues(PageSuccess).Inc()
	}
	r.pageDurationSeconds.Observe(outcome.Duration.Seconds())
	if outcome.RecordsSaved > 0 {
		r.rawRecordsTotal.WithLabelValues("saved").Add(float64(outcome.RecordsSaved))
	}
	if outcome.RecordsUnsaved > 0 {
		r.rawRecordsTotal.WithLabelValues("unsaved").Add(float64(outcome.RecordsUnsaved))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func (r *Recorder) ObserveRateLimitDelay(host string, duration time.Duration) {
	r.rateLimitDelaysSeconds.WithLabelValues(SanitizeHost(host)).Observe(duration.Seconds())
}

// ObserveTransform records the outcome counts of a processing run.
func (r *Recorder) ObserveTransform(written, dropped, failed int) {
	r.transformRecordsTotal.WithLabelValues("written").Add(float64(written))
	r.transformRecordsTotal.WithLabelValues("dropped").Add(float64(dropped))
	r.transformRecordsTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveUpsert records the outcome counts of a load run.
func (r *Recorder) ObserveUpsert(result jobs.UpsertResult, collisions int) {
	r.loadRecordsTotal.WithLabelValues("inserted").Add(float64(result.Inserted))
	r.loadRecordsTotal.WithLabelValues("updated").Add(float64(result.Updated))
	r.loadRecordsTotal.WithLabelValues("unchanged").Add(float64(result.Unchanged))
	r.loadRecordsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	r.loadRecordsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	r.loadCollisionsTotal.Add(float64(collisions))
}

// MarkSuccess stamps the completion time of stage.
func (r *Recorder) MarkSuccess(stage string, at time.Time) {
	r.lastSuccessTimestamp.WithLabelValues(stage).Set(float64(at.Unix()))
}

// Push sends every collector to the Pushgateway at gatewayURL under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil
	}
	if job == "" {
		job = "jobhunter"
	}
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// SanitizeHost lowercases the hostname of rawURL, returning "unknown" when
// it cannot be parsed.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
