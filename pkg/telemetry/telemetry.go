package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Package-wide counters for the vouch pipeline. Registered once at init;
// the /metrics endpoint is mounted by the app via promhttp.
var (
	EventsSeen = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_events_total",
		Help: "Inbound platform events by type.",
	}, []string{"type"})

	ParseRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchd_parse_rejected_total",
		Help: "Messages in the vouch channel that did not parse into a vouch.",
	}, []string{"reason"})

	EligibilityDenied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_eligibility_denied_total",
		Help: "Vouch attempts whose subject was unknown or not staff.",
	})

	VouchesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_recorded_total",
		Help: "Vouch entries accepted into the ledger.",
	})

	VouchesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_duplicate_total",
		Help: "Vouch attempts dropped because the message id was already recorded.",
	})

	VouchesCapacityRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_capacity_rejected_total",
		Help: "Vouch attempts rejected because the subject is at capacity.",
	})

	VouchesEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_evicted_total",
		Help: "Entries evicted oldest-first to keep the ledger under its global bound.",
	})

	VouchesRetracted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_vouches_retracted_total",
		Help: "Entries removed because the source message was deleted.",
	})

	RoleGrants = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_role_grants_total",
		Help: "Trusted role grants issued to the platform.",
	})

	RoleRevokes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_role_revokes_total",
		Help: "Trusted role revocations issued to the platform.",
	})

	RoleSyncFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_role_sync_failures_total",
		Help: "Role reconciliation attempts that failed at the platform boundary.",
	})

	SnapshotSaves = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_snapshot_saves_total",
		Help: "Ledger snapshots flushed to the persistence adapter.",
	})

	SnapshotSaveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_snapshot_save_failures_total",
		Help: "Snapshot flushes that failed (mutation stays valid in memory).",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vouchd_ingest_queue_depth",
		Help: "Events waiting in the ingest queue.",
	})

	QueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchd_ingest_dropped_total",
		Help: "Events rejected because the ingest queue was full.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsSeen,
		ParseRejected,
		EligibilityDenied,
		VouchesRecorded,
		VouchesDuplicate,
		VouchesCapacityRejected,
		VouchesEvicted,
		VouchesRetracted,
		RoleGrants,
		RoleRevokes,
		RoleSyncFailures,
		SnapshotSaves,
		SnapshotSaveFailures,
		QueueDepth,
		QueueDropped,
	)
}
