// Package metrics exposes Prometheus counters for the completion pipeline.
//
// The transition counter is the production-facing instrument for the
// exactly-once guarantee: for any party, completion_transitions_total with
// result="won" must only ever advance by one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionTransitions counts attempts to move a party from
	// in_progress to complete, labeled "won" or "lost".
	CompletionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_transitions_total",
			Help: "Conditional in_progress->complete transitions, by race outcome",
		},
		[]string{"result"},
	)

	// PipelineFailures counts recommendation pipeline failures by stage
	// (aggregate, rank, explain, persist).
	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_pipeline_failures_total",
			Help: "Recommendation pipeline failures after the status flip, by stage",
		},
		[]string{"stage"},
	)

	// DegradedCompletions counts parties left complete without results.
	DegradedCompletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "completion_degraded_total",
			Help: "Parties marked complete whose results could not be persisted",
		},
	)

	// RecommendationsServed counts result reads handed to clients.
	RecommendationsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Completed result sets served to clients",
		},
	)
)
