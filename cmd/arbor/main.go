// Command arbor runs headless tree simulations: a single tree with full
// telemetry, or a cohort of independent seeds in parallel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/runner"
	"github.com/pthm-cable/arbor/scenario"
	"github.com/pthm-cable/arbor/storage"
	"github.com/pthm-cable/arbor/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	species := flag.String("species", "", "Species preset (empty = use config)")
	scenarioPath := flag.String("scenario", "", "Scenario YAML applied during the run")
	years := flag.Float64("years", 0, "Simulated years to run (0 = cohort.years from config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based); base seed in cohort mode")
	cohort := flag.Int("cohort", 0, "Run N independent trees in parallel (0 = single tree)")
	workers := flag.Int("workers", 0, "Cohort workers (0 = cohort.workers from config)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window in simulated days (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	resume := flag.String("resume", "", "Snapshot file to continue from (single-tree mode)")
	snapshotDays := flag.Float64("snapshot-days", 0, "Snapshot interval in simulated days (0 = final only)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	perf := flag.Bool("perf", false, "Collect per-phase timing")
	storeKind := flag.String("store", "", "Run record backend: memory, sqlite, mysql (empty = use config)")
	storeDSN := flag.String("store-dsn", "", "Store DSN or SQLite path (empty = use config)")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(options{
		configPath:   *configPath,
		species:      *species,
		scenarioPath: *scenarioPath,
		years:        *years,
		seed:         *seed,
		cohort:       *cohort,
		workers:      *workers,
		logStats:     *logStats,
		statsWindow:  *statsWindow,
		snapshotDir:  *snapshotDir,
		snapshotDays: *snapshotDays,
		resume:       *resume,
		outputDir:    *outputDir,
		perf:         *perf,
		storeKind:    *storeKind,
		storeDSN:     *storeDSN,
	}); err != nil {
		slog.Error("arbor failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	species      string
	scenarioPath string
	years        float64
	seed         int64
	cohort       int
	workers      int
	logStats     bool
	statsWindow  float64
	snapshotDir  string
	snapshotDays float64
	resume       string
	outputDir    string
	perf         bool
	storeKind    string
	storeDSN     string
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.species != "" {
		cfg.Tree.Species = opts.species
		if err := cfg.Finalize(); err != nil {
			return fmt.Errorf("selecting species: %w", err)
		}
	}

	var script *scenario.Script
	if opts.scenarioPath != "" {
		if script, err = scenario.Load(opts.scenarioPath); err != nil {
			return err
		}
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	years := opts.years
	if years <= 0 {
		years = cfg.Cohort.Years
	}
	days := years * float64(cfg.Derived.Calendar.DaysPerYear())

	om, err := telemetry.NewOutputManager(opts.outputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kind, dsn := cfg.Storage.Kind, cfg.Storage.DSN
	if opts.storeKind != "" {
		kind = opts.storeKind
	}
	if opts.storeDSN != "" {
		dsn = opts.storeDSN
	}
	store, err := storage.NewStore(kind, dsn)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing %s store: %w", kind, err)
	}
	defer storage.CloseIfSupported(store)

	scenarioName := ""
	if script != nil {
		scenarioName = script.Name
	}
	record := func(ls telemetry.LifetimeStats) {
		rec := storage.NewRun(ls.Seed, ls.Species)
		rec.Scenario = scenarioName
		rec.Summary = &ls
		if err := store.SaveRun(ctx, rec); err != nil {
			slog.Error("failed to save run", "seed", ls.Seed, "error", err)
		}
	}

	if opts.cohort > 0 {
		return runCohort(ctx, cfg, opts, seed, days, script, om, record)
	}

	runOpts := runner.Options{
		Seed:         seed,
		LogStats:     opts.logStats,
		WindowDays:   opts.statsWindow,
		SnapshotDir:  opts.snapshotDir,
		SnapshotDays: opts.snapshotDays,
		Output:       om,
		Scenario:     script,
		Perf:         opts.perf,
	}
	var r *runner.Run
	if opts.resume != "" {
		snap, err := telemetry.LoadSnapshot(opts.resume)
		if err != nil {
			return err
		}
		if r, err = runner.Resume(cfg, snap, runOpts); err != nil {
			return err
		}
		seed = snap.Seed
	} else {
		r = runner.New(cfg, runOpts)
	}

	slog.Info("starting headless simulation",
		"seed", seed,
		"species", r.Sim().Tree().Species,
		"years", years,
		"scenario", scenarioName,
		"resumed_at", r.Sim().Substeps(),
	)
	start := time.Now()
	ls := r.RunFor(days)
	record(ls)

	elapsed := time.Since(start)
	fmt.Printf("%s %d: %s after %s years | height %sm | dbh %scm | biomass %skg | %s substeps in %s\n",
		ls.Species, ls.Seed, outcome(ls),
		humanize.FormatFloat("#,###.##", ls.AgeYears),
		humanize.FormatFloat("#,###.##", ls.Height),
		humanize.FormatFloat("#,###.#", ls.DBH),
		humanize.FormatFloat("#,###.#", ls.Biomass),
		humanize.Comma(ls.Substeps),
		elapsed.Round(time.Millisecond),
	)
	return nil
}

func runCohort(
	ctx context.Context,
	cfg *config.Config,
	opts options,
	baseSeed int64,
	days float64,
	script *scenario.Script,
	om *telemetry.OutputManager,
	record func(telemetry.LifetimeStats),
) error {
	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Cohort.Workers
	}
	slog.Info("starting cohort",
		"size", opts.cohort,
		"workers", workers,
		"base_seed", baseSeed,
		"species", cfg.Derived.SpeciesName,
		"days", days,
	)

	start := time.Now()
	res, err := runner.RunCohort(ctx, cfg, runner.CohortOptions{
		Size:     opts.cohort,
		Workers:  workers,
		BaseSeed: baseSeed,
		Days:     days,
		Scenario: script,
	})
	if err != nil {
		return fmt.Errorf("cohort: %w", err)
	}

	for _, ls := range res.Runs {
		record(ls)
		if err := om.WriteLifetime(ls); err != nil {
			return err
		}
	}
	if err := om.WriteCohort(res.Stats); err != nil {
		return err
	}
	slog.Info("cohort complete", "stats", res.Stats, "elapsed", time.Since(start).String())

	fmt.Printf("%s trees: %s%% survived | median lifespan %s years\n",
		humanize.Comma(int64(res.Stats.Size)),
		humanize.FormatFloat("#.#", res.Stats.SurvivalFraction*100),
		humanize.FormatFloat("#,###.##", res.Stats.LifespanMedian),
	)
	for _, c := range res.Stats.Causes {
		fmt.Printf("  %-12s %s\n", c.Cause, humanize.Comma(int64(c.Count)))
	}
	return nil
}

func outcome(ls telemetry.LifetimeStats) string {
	if ls.Alive {
		return "alive"
	}
	return "died of " + ls.Cause
}
