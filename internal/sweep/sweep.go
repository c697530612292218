// Package sweep runs the scheduled consistency pass: verify the ledger's
// message index against the entry lists, rebuild it on any violation,
// and re-reconcile every tracked subject's role state. The sweep is a
// safety net; normal operation keeps the invariant on every mutation.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"vouchd/pkg/engine"
	"vouchd/pkg/logger"
)

// Start launches the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eng *engine.Engine, enabled bool, cronExpr string) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, eng, cronExpr)
	logger.Info("sweep_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, eng *engine.Engine, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			RunOnce(ctx, eng)
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single verify/repair/reconcile pass.
func RunOnce(ctx context.Context, eng *engine.Engine) {
	start := time.Now()
	if err := eng.Ledger().CheckIndex(); err != nil {
		logger.Warn("sweep_index_violation", "error", err)
		eng.Ledger().RebuildIndex()
		logger.Info("sweep_index_rebuilt")
	}
	eng.ReconcileAll(ctx)
	subjects, entries := eng.Ledger().Stats()
	logger.Info("sweep_complete",
		"subjects", subjects,
		"entries", entries,
		"elapsed", time.Since(start).String())
}
