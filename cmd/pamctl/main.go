package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/pamjoint/internal/config"
	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/experiment"
	"github.com/san-kum/pamjoint/internal/metrics"
	"github.com/san-kum/pamjoint/internal/plant"
	"github.com/san-kum/pamjoint/internal/pump"
	"github.com/san-kum/pamjoint/internal/storage"
	"github.com/san-kum/pamjoint/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	target     float64
	duration   time.Duration
	period     time.Duration
	failSafe   string
	seed       int64
	dropout    float64
	speed      float64
	integrator string
	pngDir     string
	outFile    string
	axes       []string
	metricName string
	workers    int
	top        int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "pamctl",
		Short:        "cascade controller for a pneumatic muscle joint",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultStoreDir, "run data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the controller on the hardware rig",
		Args:  cobra.NoArgs,
		RunE:  runHardware,
	}
	addControlFlags(runCmd)

	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "run the controller against the simulated joint",
		Args:  cobra.NoArgs,
		RunE:  runSim,
	}
	addControlFlags(simCmd)
	addPlantFlags(simCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive the simulated joint interactively",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addControlFlags(liveCmd)
	addPlantFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id|latest]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngDir, "png", "", "also write angle.png and pressure.png into this directory")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id|latest]",
		Short: "tracking statistics and oscillation analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id|latest]",
		Short: "export run cycles to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id|latest]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", name, config.Presets[name].Description)
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a configuration file from a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := preset
			if name == "" {
				name = "hardware"
			}
			cfg := config.GetPreset(name)
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s preset to %s\n", name, args[0])
			return nil
		},
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "preset to write (default hardware)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted simulation from a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search controller gains on the simulated joint",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addControlFlags(tuneCmd)
	addPlantFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&axes, "param", nil, "parameter axis, name=v1,v2 or name=start:stop:step (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "tracking_rms_deg", "metric to minimise")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel simulations (default NumCPU)")
	tuneCmd.Flags().IntVar(&top, "top", 10, "results to print")

	rootCmd.AddCommand(runCmd, simCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, presetsCmd, configCmd, scenarioCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addControlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&target, "target", 0, "target angle in degrees")
	cmd.Flags().DurationVar(&duration, "time", config.DefaultDuration, "run duration (0 runs the rig until interrupted)")
	cmd.Flags().DurationVar(&period, "period", 20*time.Millisecond, "control period")
	cmd.Flags().StringVar(&failSafe, "fail-safe", string(cycle.FailSafeHold), "fail-safe policy (hold|duty)")
}

func addPlantFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&seed, "seed", 1, "sensor noise seed")
	cmd.Flags().Float64Var(&dropout, "dropout", 0, "sensor dropout probability")
	cmd.Flags().Float64Var(&speed, "speed", 0, "pace against the wall clock (1 = real time, 0 = unpaced)")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "plant integrator (rk4|euler)")
}

// loadConfig resolves a preset or config file, then applies flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command, defaultPreset string) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		name string
	)
	switch {
	case configFile != "" && preset != "":
		return nil, "", errors.New("--config and --preset are mutually exclusive")
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	default:
		name = defaultPreset
		if preset != "" {
			name = preset
		}
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target = target
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("period") {
		cfg.Driver.Period = period
	}
	if flags.Changed("fail-safe") {
		cfg.Driver.FailSafe = failSafe
	}
	if flags.Changed("seed") {
		cfg.Plant.Seed = seed
	}
	if flags.Changed("dropout") {
		cfg.Plant.DropoutRate = dropout
	}
	if flags.Changed("speed") {
		cfg.Plant.Speed = speed
	}
	if flags.Changed("integrator") {
		cfg.Plant.Integrator = integrator
	}
	if !flags.Changed("data") && cfg.StoreDir != "" {
		dataDir = cfg.StoreDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, name, nil
}

func newLogger() (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		Prefix:          "pamctl",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	}), nil
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, "sim")
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("simulating %v towards %.1f°...\n", cfg.Duration, cfg.Target)
	start := time.Now()
	res, err := experiment.New(cfg).WithLogger(logger).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	meta := storage.RunMetadata{
		Mode:       "sim",
		Preset:     name,
		Seed:       cfg.Plant.Seed,
		Integrator: cfg.Plant.Integrator,
	}
	return finishRun(cfg, meta, res, time.Since(start))
}

func runHardware(cmd *cobra.Command, args []string) error {
	cfg, name, err := loadConfig(cmd, "hardware")
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg.Hardware, logger.WithPrefix("hal"))
	if err != nil {
		return err
	}
	defer hw.Close()

	driver, err := cycle.New(cfg.Cycle(), hw.devices(), cycle.SystemClock{}, logger.WithPrefix("driver"))
	if err != nil {
		return err
	}
	rec := storage.NewRecorder(0)
	collector := metrics.Standard(experiment.SettleBand)
	driver.AddObserver(rec)
	driver.AddObserver(collector)
	if err := driver.SetTargetAngle(cfg.Target); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var cancel context.CancelFunc
	if cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Pump.Enabled {
		maint, err := pump.NewMaintainer(hw.pump, hw.pump, cfg.Pump.Period, cycle.SystemClock{}, logger.WithPrefix("pump"))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			maint.Run(ctx)
		}()
	}

	start := time.Now()
	runErr := driver.Run(ctx)
	cancel()
	wg.Wait()

	if err := hw.valves.CloseAll(); err != nil {
		logger.Error("closing valves", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}

	meta := storage.RunMetadata{Mode: "hardware", Preset: name}
	res := &experiment.Result{Reports: rec.Reports(), Metrics: collector.Values(), Stats: driver.Stats()}
	return finishRun(cfg, meta, res, time.Since(start))
}

func finishRun(cfg *config.Config, meta storage.RunMetadata, res *experiment.Result, elapsed time.Duration) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	meta.Period = cfg.Driver.Period.Seconds()
	meta.FailSafe = cfg.Driver.FailSafe
	meta.Metrics = res.Metrics

	runID, err := st.Save(meta, res.Reports)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("cycles: %d (skipped %d, overruns %d, missed %d)\n", res.Stats.Cycles, res.Stats.Skipped, res.Stats.Overruns, res.Stats.Missed)
	printMetrics(meta.Metrics)
	return nil
}

func printMetrics(values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, values[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, "sim")
	if err != nil {
		return err
	}

	// the TUI owns the terminal, so the simulation logs nowhere
	sim, err := plant.NewSimulation(cfg.Plant.Params(), cfg.Cycle(), 0, nil)
	if err != nil {
		return err
	}

	m := viz.NewModel(context.Background(), sim, cfg.Target)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
