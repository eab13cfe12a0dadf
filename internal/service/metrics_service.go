package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Regeneration outcomes used as metric labels.
const (
	OutcomeSuccess  = "success"
	OutcomeConfig   = "config_error"
	OutcomeRejected = "rejected"
	OutcomeCanceled = "canceled"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	regenerations        *prometheus.CounterVec
	regenerationDuration prometheus.Observer
	placedCourses        prometheus.Counter
	unplacedCourses      *prometheus.CounterVec
	jobs                 *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	regenerations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_regenerations_total",
		Help: "Timetable regenerations by outcome",
	}, []string{"outcome"})

	regenerationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_regeneration_seconds",
		Help:    "Wall time of a regeneration including loading and the swap",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	placedCourses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_placed_courses_total",
		Help: "Course placements committed by regenerations",
	})

	unplacedCourses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_unplaced_courses_total",
		Help: "Class/course pairs left unplaced by committed regenerations",
	}, []string{"reason"})

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_regeneration_jobs_total",
		Help: "Async regeneration job transitions by status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses, dbQueryDuration,
		regenerations, regenerationDuration, placedCourses, unplacedCourses, jobs, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		dbQueryDuration:      dbQueryDuration,
		regenerations:        regenerations,
		regenerationDuration: regenerationDuration,
		placedCourses:        placedCourses,
		unplacedCourses:      unplacedCourses,
		jobs:                 jobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveRegeneration records one regeneration. Placement counters only move on success.
func (m *MetricsService) ObserveRegeneration(outcome string, duration time.Duration, result *models.RegenerationResult) {
	if m == nil {
		return
	}
	m.regenerations.WithLabelValues(outcome).Inc()
	m.regenerationDuration.Observe(duration.Seconds())
	if outcome != OutcomeSuccess || result == nil {
		return
	}
	m.placedCourses.Add(float64(result.PlacedCount))
	for _, item := range result.Unplaced {
		m.unplacedCourses.WithLabelValues(string(item.Reason)).Inc()
	}
}

// RecordJobStatus counts an async job entering a status.
func (m *MetricsService) RecordJobStatus(status models.RegenerationJobStatus) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(string(status)).Inc()
}
