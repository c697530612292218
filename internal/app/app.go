// Package app wires configuration, storage, the platform client, the
// vouch pipeline, and the HTTP server into one lifecycle.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vouchd/internal/sweep"
	"vouchd/pkg/banner"
	"vouchd/pkg/config"
	"vouchd/pkg/eligibility"
	"vouchd/pkg/engine"
	"vouchd/pkg/ingest"
	"vouchd/pkg/ledger"
	"vouchd/pkg/logger"
	"vouchd/pkg/models"
	"vouchd/pkg/platform"
	"vouchd/pkg/rolesync"
	"vouchd/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	adapter store.Adapter
	ledger  *ledger.Ledger
	engine  *engine.Engine
	queue   *ingest.Queue

	srv *http.Server
}

// New initializes everything that does not need a running context: the
// snapshot store, the restored ledger, the platform client, and the
// pipeline. Call Run to start the HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	adapter, err := openAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store at %s: %w", eff.DBPath, err)
	}

	snap, err := adapter.Load()
	if err != nil {
		// adapters degrade to empty themselves; this is belt and braces
		logger.Warn("snapshot_load_error", "error", err)
		snap = models.Snapshot{}
	}
	led := ledger.FromSnapshot(snap, cfg.Ledger.MaxPerSubject, cfg.Ledger.MaxTotal)
	if err := led.CheckIndex(); err != nil {
		logger.Warn("restored_index_violation", "error", err)
		led.RebuildIndex()
	}

	client := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token, cfg.Platform.RequestTimeout.Duration())
	gate := eligibility.New(client, cfg.Platform.GuildID, cfg.Platform.StaffRoleIDs)
	syncer := rolesync.New(led, client,
		cfg.Platform.GuildID, cfg.Platform.TrustedRoleID,
		cfg.RoleSync.Threshold, cfg.RoleSync.Timeout.Duration(),
		cfg.RoleSync.RPS, cfg.RoleSync.Burst)
	eng := engine.New(led, gate, adapter, syncer, client, cfg.Platform.VouchChannelID)

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		adapter:   adapter,
		ledger:    led,
		engine:    eng,
		queue:     ingest.NewQueue(cfg.Ingest.QueueCapacity),
	}
	return a, nil
}

// Run starts the ingest consumer, the sweep scheduler, and the HTTP
// server, and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	sweepCancel, err := sweep.Start(ctx, a.engine, a.eff.Config.Sweep.Enabled, a.eff.Config.Sweep.Cron)
	if err != nil {
		return err
	}
	defer sweepCancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.queue.RunWorker(gctx.Done(), a.handleOp)
		return nil
	})

	errCh := a.startHTTP()

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}
	})

	<-gctx.Done()
	a.shutdownHTTP()
	runErr := g.Wait()

	// drain what the connector already handed us, then flush and close
	a.queue.CloseAndDrain()
	a.engine.Flush()
	if err := a.adapter.Close(); err != nil {
		logger.Warn("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
	return runErr
}

// handleOp decodes one queued event and hands it to the engine. This is
// the single consumer, so ledger mutations are serialized here.
func (a *App) handleOp(op *ingest.Op) error {
	ctx := context.Background()
	switch op.Type {
	case ingest.EventMessage:
		var ev models.MessageEvent
		if err := json.Unmarshal(op.Payload, &ev); err != nil {
			logger.Warn("event_decode_failed", "type", string(op.Type), "error", err)
			return err
		}
		a.engine.OnMessage(ctx, ev)
	case ingest.EventMessageDeleted:
		var ev models.MessageDeletedEvent
		if err := json.Unmarshal(op.Payload, &ev); err != nil {
			logger.Warn("event_decode_failed", "type", string(op.Type), "error", err)
			return err
		}
		a.engine.OnMessageDeleted(ctx, ev)
	default:
		logger.Warn("event_unknown_type", "type", string(op.Type))
	}
	return nil
}

func (a *App) printBanner() {
	subjects, entries := a.ledger.Stats()
	banner.PrintWithEff(a.eff, a.version, subjects, entries)
}

func (a *App) shutdownHTTP() {
	if a.srv == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err)
	}
}

func openAdapter(cfg *config.Config) (store.Adapter, error) {
	switch cfg.Storage.Backend {
	case "file":
		return store.NewFileAdapter(cfg.Storage.Path), nil
	case "", "pebble":
		return store.OpenPebble(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
