package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/pamjoint/internal/analysis"
	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/metrics"
	"github.com/san-kum/pamjoint/internal/storage"
)

// loadRun resolves a run id, accepting "latest" for the newest run.
func loadRun(runID string) (*storage.RunMetadata, []cycle.Report, error) {
	st := storage.New(dataDir)

	var (
		meta *storage.RunMetadata
		err  error
	)
	if runID == "latest" {
		meta, err = st.Latest()
	} else {
		meta, err = st.Load(runID)
	}
	if err != nil {
		return nil, nil, err
	}

	reports, err := st.LoadCycles(meta.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(reports) == 0 {
		return nil, nil, fmt.Errorf("run %s has no cycles", meta.ID)
	}
	return meta, reports, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tPRESET\tTIME\tCYCLES\tDURATION\tRMS ERR\tFAULTS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2fs\t%.3f\t%.1f%%\n",
			run.ID,
			run.Mode,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Cycles,
			run.Duration,
			run.Metrics["tracking_rms_deg"],
			run.Metrics["fault_rate"]*100,
		)
	}

	return w.Flush()
}

func column(reports []cycle.Report, f func(cycle.Report) float64) []float64 {
	out := make([]float64, len(reports))
	for i, r := range reports {
		out[i] = f(r)
	}
	return out
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("cycles: %d\n\n", len(reports))

	charts := []struct {
		caption string
		series  []analysis.Series
	}{
		{"angle and target (deg)", analysis.AngleSeries},
		{"muscle pressures and setpoints (kPa)", analysis.PressureSeries},
	}
	colors := []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Gray, asciigraph.Red, asciigraph.Pink, asciigraph.Green, asciigraph.LightGreen}

	for _, c := range charts {
		data := make([][]float64, len(c.series))
		for i, s := range c.series {
			data[i] = column(reports, s.Value)
		}
		graph := asciigraph.PlotMany(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(colors[:len(data)]...),
			asciigraph.Caption(c.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	duties := [][]float64{
		column(reports, func(r cycle.Report) float64 { return float64(r.DutyA) }),
		column(reports, func(r cycle.Report) float64 { return float64(r.DutyB) }),
	}
	fmt.Println(asciigraph.PlotMany(duties,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption("inlet duty A / B"),
	))

	if pngDir == "" {
		return nil
	}
	if err := os.MkdirAll(pngDir, 0755); err != nil {
		return err
	}
	anglePath := filepath.Join(pngDir, "angle.png")
	if err := analysis.SaveChart(anglePath, meta.ID, "angle (deg)", reports, analysis.AngleSeries); err != nil {
		return err
	}
	pressurePath := filepath.Join(pngDir, "pressure.png")
	if err := analysis.SaveChart(pressurePath, meta.ID, "pressure (kPa)", reports, analysis.PressureSeries); err != nil {
		return err
	}
	fmt.Printf("\nwrote %s and %s\n", anglePath, pressurePath)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}

	errs := make([]float64, 0, len(reports))
	for _, r := range reports {
		if !r.Skipped {
			errs = append(errs, r.Target-r.Angle)
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("run %s has no completed cycles", meta.ID)
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("mode: %s, %d cycles, %d completed\n\n", meta.Mode, len(reports), len(errs))

	// the second half is the closest thing to steady state a run has
	tail := errs[len(errs)/2:]
	for _, s := range []struct {
		name string
		xs   []float64
	}{{"error (whole run)", errs}, {"error (second half)", tail}} {
		sum := metrics.Summarize(s.xs)
		fmt.Printf("%s: mean %+.3f  std %.3f  rms %.3f  p95 %.3f  range [%.3f, %.3f]\n",
			s.name, sum.Mean, sum.StdDev, sum.RMS, sum.P95, sum.Min, sum.Max)
	}
	fmt.Printf("zero crossings (second half): %d\n\n", analysis.ZeroCrossings(tail))

	rate := 1 / meta.Period
	spec := analysis.PowerSpectrum(tail, rate).Band(rate / 4)
	if len(spec.Power) > 1 {
		fmt.Println(asciigraph.Plot(spec.Power,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("error spectrum, 0 to %.1f hz", rate/4)),
		))
		fmt.Println()
	}
	freq, power := spec.Dominant()
	fmt.Printf("dominant frequency: %.3f hz (amplitude %.3f deg)\n", freq, power*2)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	fmt.Println()
	fmt.Print(analysis.PhasePortraitToASCII(analysis.TrackingPortrait(reports), 60, 16))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outFile != "" {
		return storage.ExportCSVFile(outFile, *meta, reports)
	}
	return storage.WriteCSV(os.Stdout, meta.Start, reports)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, reports, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outFile != "" {
		return storage.ExportJSONFile(outFile, *meta, reports)
	}
	return storage.ExportJSON(os.Stdout, *meta, reports)
}
