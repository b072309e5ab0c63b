// Package analysis inspects recorded control runs.
//
//   - [PowerSpectrum]: spectrum of a uniformly sampled signal, used to spot
//     limit cycles in the tracking error
//   - [TrackingPortrait]: error against outer-loop output, one point per cycle
//   - [ZeroCrossings]: sign changes of a signal
//
// A well tuned cascade settles with a flat spectrum. A sustained peak in
// the error spectrum means the outer loop is oscillating:
//
//	spec := analysis.PowerSpectrum(errs, 1/period.Seconds())
//	freq, _ := spec.Dominant()
package analysis
