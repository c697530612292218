// Package engine implements the vouch pipeline: channel filter, command
// parse, eligibility gate, ledger mutation, snapshot flush, and role
// reconciliation. It is driven by the single ingest consumer, so ledger
// mutations arrive one at a time.
package engine

import (
	"context"
	"time"

	"vouchd/pkg/eligibility"
	"vouchd/pkg/ledger"
	"vouchd/pkg/logger"
	"vouchd/pkg/models"
	"vouchd/pkg/parser"
	"vouchd/pkg/platform"
	"vouchd/pkg/rolesync"
	"vouchd/pkg/store"
	"vouchd/pkg/telemetry"
)

const capacityNotice = "vouch limit reached for this user"

// Engine owns the event-to-ledger pipeline.
type Engine struct {
	ledger    *ledger.Ledger
	gate      *eligibility.Gate
	store     store.Adapter
	sync      *rolesync.Syncer
	notifier  platform.Notifier
	channelID string
}

// New wires the pipeline. notifier may be nil, in which case capacity
// notices are logged only.
func New(l *ledger.Ledger, gate *eligibility.Gate, st store.Adapter, sync *rolesync.Syncer, notifier platform.Notifier, channelID string) *Engine {
	return &Engine{
		ledger:    l,
		gate:      gate,
		store:     st,
		sync:      sync,
		notifier:  notifier,
		channelID: channelID,
	}
}

// Ledger exposes the underlying ledger for read endpoints.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// OnMessage processes one inbound chat message. Messages outside the
// vouch channel, non-commands, and ineligible subjects are dropped
// silently; only a capacity rejection produces a user-visible reply.
func (e *Engine) OnMessage(ctx context.Context, ev models.MessageEvent) {
	telemetry.EventsSeen.WithLabelValues("message").Inc()
	if ev.ChannelID != e.channelID {
		return
	}
	attempt, rej := parser.Parse(ev.Text)
	if rej != parser.RejectNone {
		if rej != parser.RejectNotCommand {
			telemetry.ParseRejected.WithLabelValues(string(rej)).Inc()
			logger.Debug("vouch_parse_rejected", "message", ev.MessageID, "reason", string(rej))
		}
		return
	}
	if !e.gate.Allow(ctx, attempt.SubjectID) {
		telemetry.EligibilityDenied.Inc()
		logger.Debug("vouch_subject_ineligible", "subject", attempt.SubjectID, "message", ev.MessageID)
		return
	}

	entry := models.VouchEntry{
		By:        ev.AuthorID,
		Target:    attempt.SubjectID,
		Reason:    attempt.Reason,
		Timestamp: time.Now().UTC(),
		MessageID: ev.MessageID,
	}
	before := e.ledger.Evicted()
	switch e.ledger.Record(entry) {
	case ledger.Accepted:
		telemetry.VouchesRecorded.Inc()
		if n := e.ledger.Evicted() - before; n > 0 {
			telemetry.VouchesEvicted.Add(float64(n))
		}
		logger.Info("vouch_recorded", "by", entry.By, "subject", entry.Target, "message", entry.MessageID)
		e.flush()
		e.sync.Reconcile(ctx, entry.Target)
	case ledger.Duplicate:
		telemetry.VouchesDuplicate.Inc()
		logger.Debug("vouch_duplicate", "message", ev.MessageID)
	case ledger.CapacityRejected:
		telemetry.VouchesCapacityRejected.Inc()
		logger.Warn("vouch_capacity_rejected", "subject", attempt.SubjectID, "message", ev.MessageID)
		e.notifyCapacity(ctx, ev)
	}
}

// OnMessageDeleted retracts the entry created by the deleted message,
// if one exists. Only deletions in the vouch channel are acted on; an
// unknown message id is a no-op.
func (e *Engine) OnMessageDeleted(ctx context.Context, ev models.MessageDeletedEvent) {
	telemetry.EventsSeen.WithLabelValues("message_deleted").Inc()
	if ev.ChannelID != e.channelID {
		return
	}
	subject, ok := e.ledger.Retract(ev.MessageID)
	if !ok {
		return
	}
	telemetry.VouchesRetracted.Inc()
	logger.Info("vouch_retracted", "subject", subject, "message", ev.MessageID)
	e.flush()
	e.sync.Reconcile(ctx, subject)
}

// ReconcileAll re-checks the role state of every tracked subject.
// Used by the periodic sweep after index verification.
func (e *Engine) ReconcileAll(ctx context.Context) {
	for _, sid := range e.ledger.SubjectIDs() {
		e.sync.Reconcile(ctx, sid)
	}
}

// Flush persists the current ledger snapshot. Exposed for shutdown.
func (e *Engine) Flush() { e.flush() }

func (e *Engine) flush() {
	if err := e.store.Save(e.ledger.Snapshot()); err != nil {
		telemetry.SnapshotSaveFailures.Inc()
		logger.Error("snapshot_save_failed", "error", err)
		return
	}
	telemetry.SnapshotSaves.Inc()
}

func (e *Engine) notifyCapacity(ctx context.Context, ev models.MessageEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev.ChannelID, ev.MessageID, capacityNotice); err != nil {
		logger.Warn("capacity_notice_failed", "message", ev.MessageID, "error", err)
	}
}
