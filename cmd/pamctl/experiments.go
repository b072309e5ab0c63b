package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/pamjoint/internal/experiment"
	"github.com/san-kum/pamjoint/internal/storage"
)

func runScenario(cmd *cobra.Command, args []string) error {
	s, err := experiment.LoadScenario(args[0])
	if err != nil {
		return err
	}
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if cfg.StoreDir != "" && !cmd.Flags().Changed("data") {
		dataDir = cfg.StoreDir
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("scenario %s: %d steps over %v\n", s.Name, len(s.Steps), cfg.Duration)
	start := time.Now()
	res, err := experiment.New(cfg).WithSteps(s.Steps).WithLogger(logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	preset := s.Preset
	if preset == "" {
		preset = "sim"
	}
	meta := storage.RunMetadata{
		Mode:       "scenario",
		Preset:     preset,
		Seed:       cfg.Plant.Seed,
		Integrator: cfg.Plant.Integrator,
	}
	return finishRun(cfg, meta, res, time.Since(start))
}

func runTune(cmd *cobra.Command, args []string) error {
	if len(axes) == 0 {
		return fmt.Errorf("at least one --param is required (tunable: %s)", strings.Join(experiment.Params(), ", "))
	}
	cfg, _, err := loadConfig(cmd, "sim")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(axes))
	ranges := make([][]float64, 0, len(axes))
	for _, a := range axes {
		name, values, err := experiment.ParseAxis(a)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	g, err := experiment.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	g.Workers = workers

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("evaluating %d candidates over %v each...\n", len(g.Candidates()), cfg.Duration)
	start := time.Now()
	results, err := g.Search(ctx, cfg, metricName)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start).Round(time.Millisecond))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\t%s\n", strings.ToUpper(strings.Join(sorted, "\t")), strings.ToUpper(metricName))
	for i, r := range results {
		if i >= top {
			break
		}
		cols := make([]string, len(sorted))
		for j, name := range sorted {
			cols[j] = fmt.Sprintf("%g", r.Params[name])
		}
		score := fmt.Sprintf("%.4f", r.Score)
		if math.IsInf(r.Score, 1) {
			score = "failed"
			if r.Err != nil {
				score = "failed: " + r.Err.Error()
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, strings.Join(cols, "\t"), score)
	}
	return w.Flush()
}
