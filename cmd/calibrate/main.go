// Package main fits mortality hazard parameters so that a cohort reaches a
// target median lifespan and survival fraction.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/arbor/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	years := flag.Int("years", 50, "Simulated years per tree")
	size := flag.Int("cohort", 32, "Trees per evaluation")
	workers := flag.Int("workers", 0, "Cohort workers (0 = GOMAXPROCS)")
	seed := flag.Int64("seed", 42, "Base seed shared by every evaluation")
	targetMedian := flag.Float64("target-median", 40, "Target median lifespan in years")
	targetSurvival := flag.Float64("target-survival", 0.3, "Target fraction alive at the horizon")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := NewParamVector(baseCfg)
	targets := Targets{MedianLifespan: *targetMedian, Survival: *targetSurvival}
	evaluator := NewFitnessEvaluator(params, baseCfg, targets, *size, *workers, *seed, *years)

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness", "median_lifespan", "survival"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness, err := evaluator.Evaluate(ctx, raw)
			if err != nil {
				// Cancelled: an infinite value stops the simplex from moving there.
				return fitness
			}
			evalCount++
			ev := evaluator.Last()

			row := []string{
				strconv.Itoa(evalCount),
				fmt.Sprintf("%.6f", fitness),
				fmt.Sprintf("%.3f", ev.MedianLifespan),
				fmt.Sprintf("%.3f", ev.Survival),
			}
			for _, v := range raw {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			logWriter.Write(row)
			logWriter.Flush()

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: median=%.1fy survival=%.2f fitness=%.4f (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, ev.MedianLifespan, ev.Survival, fitness, evaluator.Best().Fitness,
				formatDuration(elapsed), formatDuration(remaining))
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
	}
	method := &optimize.NelderMead{SimplexSize: 0.2}

	fmt.Printf("Starting Nelder-Mead calibration with %d parameters, max_evals=%d\n", params.Dim(), *maxEvals)
	fmt.Printf("Cohort: %s trees x %d years, target median %.1fy, survival %.2f\n",
		humanize.Comma(int64(*size)), *years, *targetMedian, *targetSurvival)

	for i, v := range params.ExtractFromConfig(baseCfg) {
		fmt.Printf("  %s: %.6f\n", params.Specs[i].Path, v)
	}

	initX := params.Normalize(params.DefaultVector())
	if _, err := optimize.Minimize(problem, initX, settings, method); err != nil {
		log.Printf("optimization ended: %v", err)
	}

	best := evaluator.Best()
	if best == nil {
		log.Fatal("no evaluation completed")
	}
	// Use best params found (may be from any evaluation, not just the final simplex)
	bestParams := best.Params

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.4f (median %.1fy, survival %.2f)\n", best.Fitness, best.MedianLifespan, best.Survival)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	curvePath := filepath.Join(*outputDir, "survival_curve.csv")
	if err := writeCurve(curvePath, best.Curve); err != nil {
		log.Printf("failed to write survival curve: %v", err)
	} else {
		fmt.Printf("Survival curve saved to: %s\n", curvePath)
	}
}

func writeCurve(path string, curve []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"year", "alive_fraction"})
	for i, v := range curve {
		w.Write([]string{strconv.Itoa(i + 1), fmt.Sprintf("%.4f", v)})
	}
	w.Flush()
	return w.Error()
}
