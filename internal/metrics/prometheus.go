package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the reconciliation service

var (
	// Source fetch metrics
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fightsync_source_fetches_total",
			Help: "Total number of source fetch attempts",
		},
		[]string{"source", "status"},
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fightsync_source_fetch_duration_seconds",
			Help:    "Duration of source fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fightsync_runs_total",
			Help: "Total number of reconciliation runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fightsync_run_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// Catalog mutation metrics
	EventsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_events_added_total",
			Help: "Total number of events added to the catalog",
		},
	)

	EventsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_events_updated_total",
			Help: "Total number of events updated in the catalog",
		},
	)

	EventsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_events_cancelled_total",
			Help: "Total number of events auto-cancelled",
		},
	)

	FightsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_fights_added_total",
			Help: "Total number of fights added to the catalog",
		},
	)

	FightsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_fights_updated_total",
			Help: "Total number of fights updated in the catalog",
		},
	)

	FightsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_fights_removed_total",
			Help: "Total number of fights removed from the catalog",
		},
	)

	FightersUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fightsync_fighters_upserted_total",
			Help: "Total number of fighter upserts",
		},
	)

	// Strike ledger metrics
	LedgerEventStrikes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fightsync_ledger_event_strikes",
			Help: "Number of events currently carrying strikes",
		},
	)

	LedgerFightStrikes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fightsync_ledger_fight_strikes",
			Help: "Number of fights currently carrying strikes",
		},
	)

	// Validation metrics
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fightsync_records_dropped_total",
			Help: "Total number of scraped records dropped by validation",
		},
		[]string{"kind"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fightsync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fightsync_last_successful_run_timestamp",
			Help: "Timestamp of the last completed reconciliation run",
		},
	)
)

// RecordSourceFetch records a source fetch attempt
func RecordSourceFetch(source, status string, duration float64) {
	SourceFetchesTotal.WithLabelValues(source, status).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration)
}

// RecordRun records a finished reconciliation run
func RecordRun(status string, duration float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration)

	if status == "completed" {
		LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordDroppedRecord records a record dropped by validation
func RecordDroppedRecord(kind string) {
	RecordsDropped.WithLabelValues(kind).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateLedgerStats updates the strike ledger gauges
func UpdateLedgerStats(eventStrikes, fightStrikes int) {
	LedgerEventStrikes.Set(float64(eventStrikes))
	LedgerFightStrikes.Set(float64(fightStrikes))
}
