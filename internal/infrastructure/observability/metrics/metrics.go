// Package metrics exposes Prometheus counters for the analytics pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTracked counts events accepted by the tracking pipeline, by type.
	EventsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_tracked_total",
		Help: "The total number of analytics events recorded, by event type",
	}, []string{"type"})

	// EventsDropped counts events rejected before storage, by reason
	// (disabled, bot, sampled, excluded, invalid).
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_events_dropped_total",
		Help: "The total number of events dropped before storage, by reason",
	}, []string{"reason"})

	// EventsFailed counts event processing failures recorded against stored events.
	EventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_failed_total",
		Help: "The total number of event processing failures",
	})

	// JourneysUpdated counts journey create-or-update operations.
	JourneysUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_journeys_updated_total",
		Help: "The total number of session journey updates",
	})

	// ExperimentAssignments counts variant assignments handed to sessions.
	ExperimentAssignments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_experiment_assignments_total",
		Help: "The total number of A/B test variant assignments",
	})

	// ExperimentConversions counts first-time conversions recorded.
	ExperimentConversions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_experiment_conversions_total",
		Help: "The total number of A/B test conversions recorded",
	})

	// ReportsGenerated counts weekly report generations.
	ReportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_reports_generated_total",
		Help: "The total number of weekly reports generated",
	})

	// TrackingFailures counts tracking-side errors swallowed by the
	// middleware error boundary.
	TrackingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_tracking_failures_total",
		Help: "The total number of tracking failures absorbed without affecting responses",
	})
)
