package monitoring

import (
	"net/http"
	"time"

	"adn/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EntryRejectedReason string

var (
	EntryMalformedPayload  EntryRejectedReason = "malformed_payload"
	EntryUnknownAd         EntryRejectedReason = "unknown_ad"
	EntryUnknownPredicate  EntryRejectedReason = "unknown_predicate"
	EntryStaleState        EntryRejectedReason = "stale_state"
	EntryChainMismatch     EntryRejectedReason = "chain_mismatch"
	EntryPredicateViolated EntryRejectedReason = "predicate_violation"
	EntryProofInvalid      EntryRejectedReason = "proof_invalid"
	EntryRejectedUnknown   EntryRejectedReason = "other"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds   prometheus.Gauge
	lastVisitedSlot     prometheus.Gauge
	slotsProcessedCount prometheus.Counter
	entryAcceptedCount  prometheus.Counter
	entryRejectedCount  *prometheus.CounterVec
	registeredAds       prometheus.Gauge
	verifyDuration      prometheus.Histogram
	pipelineQueueDepth  prometheus.Gauge
	requestOutcomeCount *prometheus.CounterVec
	panicCount          prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "adn_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		lastVisitedSlot: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "adn_sync_last_visited_slot",
				Help: "The last feed slot the synchronizer finished processing",
			},
		),
		slotsProcessedCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adn_sync_slots_processed_count",
				Help: "The total number of feed slots processed since start",
			},
		),
		entryAcceptedCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adn_sync_entry_accepted_count",
				Help: "The total number of feed entries accepted and applied",
			},
		),
		entryRejectedCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adn_sync_entry_rejected_count",
				Help: "The total number of feed entries discarded",
			},
			[]string{"reason"},
		),
		registeredAds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "adn_sync_registered_ads",
				Help: "The number of anchored datastores known to the ledger",
			},
		),
		verifyDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "adn_proof_verify_duration_seconds",
				Help: "Duration in seconds of a single proof verification",
			},
		),
		pipelineQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "adn_pipeline_queue_depth",
				Help: "The total pending requests queued in the request pipeline",
			},
		),
		requestOutcomeCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adn_pipeline_request_outcome_count",
				Help: "The total number of finished pipeline requests",
			},
			[]string{"outcome"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adn_node_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var nodeMetrics *nodePromMetrics

// InitMetrics initializes metrics for the node but does not expose them yet.
func InitMetrics() {
	nodeMetrics = newNodePromMetrics()
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetLastVisitedSlot(slot uint64) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.lastVisitedSlot.Set(float64(slot))
	nodeMetrics.slotsProcessedCount.Inc()
}

func IncreaseEntryAccepted() {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.entryAcceptedCount.Inc()
}

func IncreaseEntryRejected(reason EntryRejectedReason) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.entryRejectedCount.WithLabelValues(string(reason)).Inc()
}

func SetRegisteredAds(n int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.registeredAds.Set(float64(n))
}

func RecordVerifyDuration(d time.Duration) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.verifyDuration.Observe(d.Seconds())
}

func SetPipelineQueueDepth(n int) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.pipelineQueueDepth.Set(float64(n))
}

func IncreaseRequestOutcome(outcome string) {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.requestOutcomeCount.WithLabelValues(outcome).Inc()
}

func IncreasePanicCount() {
	if nodeMetrics == nil {
		return
	}
	nodeMetrics.panicCount.Inc()
}
