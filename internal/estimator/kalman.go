package estimator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidNoise indicates a process or measurement noise that is not strictly positive.
	ErrInvalidNoise = errors.New("estimator: noise parameters must be positive")

	// ErrInvalidCovariance indicates a negative or non-finite initial covariance.
	ErrInvalidCovariance = errors.New("estimator: covariance must be non-negative")
)

// Kalman is a scalar Kalman filter over a random-walk model.
type Kalman struct {
	estimate         float64
	covariance       float64
	processNoise     float64
	measurementNoise float64
	gain             float64
}

// New builds a filter. processNoise and measurementNoise are fixed for the
// lifetime of the filter and must both be positive.
func New(initial, covariance, processNoise, measurementNoise float64) (*Kalman, error) {
	if !(processNoise > 0) || math.IsInf(processNoise, 0) {
		return nil, fmt.Errorf("%w: process noise %v", ErrInvalidNoise, processNoise)
	}
	if !(measurementNoise > 0) || math.IsInf(measurementNoise, 0) {
		return nil, fmt.Errorf("%w: measurement noise %v", ErrInvalidNoise, measurementNoise)
	}
	if !(covariance >= 0) || math.IsInf(covariance, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCovariance, covariance)
	}
	return &Kalman{
		estimate:         initial,
		covariance:       covariance,
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
	}, nil
}

// Update folds one raw sample into the estimate and returns the new estimate.
func (k *Kalman) Update(z float64) float64 {
	k.covariance += k.processNoise
	k.gain = k.covariance / (k.covariance + k.measurementNoise)
	k.estimate += k.gain * (z - k.estimate)
	k.covariance = (1 - k.gain) * k.covariance
	return k.estimate
}

// Reinitialize restarts the filter from a new estimate and covariance.
// Noise parameters are left untouched. A negative covariance is treated as zero.
func (k *Kalman) Reinitialize(initial, covariance float64) {
	if !(covariance >= 0) {
		covariance = 0
	}
	k.estimate = initial
	k.covariance = covariance
	k.gain = 0
}

func (k *Kalman) Estimate() float64   { return k.estimate }
func (k *Kalman) Covariance() float64 { return k.covariance }

// Gain returns the Kalman gain used by the most recent Update.
func (k *Kalman) Gain() float64 { return k.gain }

// SteadyStateCovariance returns the posterior covariance the filter settles
// to for its noise parameters, the positive root of P^2 + QP - QR = 0.
func (k *Kalman) SteadyStateCovariance() float64 {
	q, r := k.processNoise, k.measurementNoise
	return (-q + math.Sqrt(q*q+4*q*r)) / 2
}
