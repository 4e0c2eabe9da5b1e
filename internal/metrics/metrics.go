// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CandidatesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "birbfetcher_candidates_fetched_total",
	Help: "Number of posts returned by channel listings",
}, []string{"channel"})

var CandidatesIneligible = promauto.NewCounter(prometheus.CounterOpts{
	Name: "birbfetcher_candidates_ineligible_total",
	Help: "Number of posts rejected by the eligibility policy",
})

// IngestOutcomes is labeled by outcome: ingested, duplicate, failed.
var IngestOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "birbfetcher_ingest_outcomes_total",
	Help: "Number of eligible posts by ingestion outcome",
}, []string{"outcome"})

var BytesStored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "birbfetcher_bytes_stored_total",
	Help: "Number of payload bytes written to the blob store",
})

var ListingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "birbfetcher_listing_failures_total",
	Help: "Number of channel listings that could not be fetched",
}, []string{"channel"})

var CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "birbfetcher_ingest_cycle_seconds",
	Help:    "Wall time of one ingestion cycle",
	Buckets: prometheus.ExponentialBuckets(1, 2, 10),
})

// ModerationDecisions is labeled by the resulting state, or "kept" when the
// item stays pending.
var ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "birbfetcher_moderation_decisions_total",
	Help: "Number of moderation re-checks by decision",
}, []string{"decision"})

var ModerationErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "birbfetcher_moderation_errors_total",
	Help: "Number of moderation re-checks that failed",
})

var ModerationSweeps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "birbfetcher_moderation_sweeps_total",
	Help: "Number of completed passes over the pending items",
})

var ItemsServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "birbfetcher_items_served_total",
	Help: "Number of blobs served over HTTP",
}, []string{"route"})
