// Command arbord serves a live tree simulation over HTTP, advancing it in
// wall-clock time and persisting snapshots to the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/scenario"
	"github.com/pthm-cable/arbor/server"
	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	addr := flag.String("addr", "", "Listen address (empty = server.addr from config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	resume := flag.String("resume", "", "Run ID to resume from its latest stored snapshot")
	scenarioPath := flag.String("scenario", "", "Scenario YAML applied as the tree ages")
	storeKind := flag.String("store", "", "Backend: memory, sqlite, mysql (empty = use config)")
	storeDSN := flag.String("store-dsn", "", "Store DSN or SQLite path (empty = use config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, *configPath, *addr, *seed, *resume, *scenarioPath, *storeKind, *storeDSN); err != nil {
		slog.Error("arbord failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, configPath, addr string, seed int64, resume, scenarioPath, storeKind, storeDSN string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if storeKind != "" {
		cfg.Storage.Kind = storeKind
	}
	if storeDSN != "" {
		cfg.Storage.DSN = storeDSN
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing %s store: %w", cfg.Storage.Kind, err)
	}
	defer storage.CloseIfSupported(store)

	s, run, err := open(ctx, cfg, store, seed, resume)
	if err != nil {
		return err
	}
	engine := sim.NewEngine(s)

	if scenarioPath != "" {
		script, err := scenario.Load(scenarioPath)
		if err != nil {
			return err
		}
		run.Scenario = script.Name
		scenario.NewPlayer(script).Attach(engine, nil)
	}
	if err := store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	srv := server.New(cfg, engine, store, run)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "run", run.ID, "seed", run.Seed, "species", run.Species)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		srv.Run(loopCtx)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}
	cancelLoop()
	<-loopDone
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	slog.Info("stopped", "run", run.ID)
	return nil
}

// open plants a fresh tree, or restores one from the latest snapshot of
// the run named by resume.
func open(ctx context.Context, cfg *config.Config, store storage.Store, seed int64, resume string) (*sim.Simulation, storage.Run, error) {
	if resume == "" {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return sim.New(cfg, seed), storage.NewRun(seed, cfg.Derived.SpeciesName), nil
	}

	run, ok, err := store.GetRun(ctx, resume)
	if err != nil {
		return nil, storage.Run{}, fmt.Errorf("loading run %s: %w", resume, err)
	}
	if !ok {
		return nil, storage.Run{}, fmt.Errorf("run %s not found", resume)
	}
	snap, ok, err := store.LatestSnapshot(ctx, resume)
	if err != nil {
		return nil, storage.Run{}, fmt.Errorf("loading snapshot for %s: %w", resume, err)
	}
	if !ok {
		return nil, storage.Run{}, fmt.Errorf("run %s has no snapshots", resume)
	}
	s, err := sim.Restore(cfg, snap)
	if err != nil {
		return nil, storage.Run{}, err
	}
	slog.Info("resumed", "run", run.ID, "substeps", s.Substeps())
	return s, run, nil
}
