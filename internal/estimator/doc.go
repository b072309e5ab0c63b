// Package estimator provides the scalar recursive filter that smooths raw
// absolute-angle samples before they reach the position loop.
//
// [Kalman] is a one-dimensional Kalman filter with no input model: every
// call to [Kalman.Update] runs a predict step (covariance grows by the
// process noise) followed by a correct step against the new sample.
//
// # Usage
//
//	kf, err := estimator.New(0, 2, 1, 1) // initial, covariance, Q, R
//	if err != nil {
//		return err
//	}
//	filtered := kf.Update(float64(raw))
//
// A Kalman instance belongs to exactly one sensor channel and must only be
// updated from the goroutine that owns the control pipeline.
package estimator
