package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a series of samples.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	RMS    float64 `json:"rms"`
	P95    float64 `json:"p95"`
}

// Summarize computes descriptive statistics of xs. It returns the zero
// Summary for an empty series.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	return Summary{
		N:      len(xs),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		RMS:    math.Sqrt(floats.Dot(xs, xs) / float64(len(xs))),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
