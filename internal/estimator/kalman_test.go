package estimator

import (
	"errors"
	"math"
	"testing"
)

func TestNewRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name    string
		p, q, r float64
		want    error
	}{
		{"zero measurement noise", 1, 1, 0, ErrInvalidNoise},
		{"negative measurement noise", 1, 1, -1, ErrInvalidNoise},
		{"zero process noise", 1, 0, 1, ErrInvalidNoise},
		{"nan process noise", 1, math.NaN(), 1, ErrInvalidNoise},
		{"negative covariance", -1, 1, 1, ErrInvalidCovariance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(0, tt.p, tt.q, tt.r)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConvergesWithinOnePercent(t *testing.T) {
	kf, err := New(0, 2, 1, 1)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	var x float64
	for i := 0; i < 20; i++ {
		x = kf.Update(100)
	}

	if math.Abs(x-100) > 1.0 {
		t.Errorf("expected estimate within 1%% of 100, got %.6f", x)
	}
}

func TestMonotonicConvergence(t *testing.T) {
	kf, err := New(0, 2, 1, 1)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	prevErr := math.Abs(100 - kf.Estimate())
	for i := 0; i < 50; i++ {
		x := kf.Update(100)
		e := math.Abs(100 - x)
		if e > prevErr {
			t.Fatalf("step %d: error grew from %.6f to %.6f", i, prevErr, e)
		}
		if x > 100 {
			t.Fatalf("step %d: overshoot to %.6f", i, x)
		}
		prevErr = e
	}
}

func TestCovarianceStaysNonNegative(t *testing.T) {
	kf, err := New(3, 0, 0.01, 50)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	samples := []float64{0, 4095, -12, 1e6, 7, 7, 7}
	for _, z := range samples {
		kf.Update(z)
		if kf.Covariance() < 0 {
			t.Fatalf("negative covariance %.6f", kf.Covariance())
		}
		if g := kf.Gain(); g < 0 || g > 1 {
			t.Fatalf("gain out of [0,1]: %.6f", g)
		}
	}
}

func TestSteadyStateCovariance(t *testing.T) {
	kf, err := New(0, 2, 1, 1)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		kf.Update(0)
	}

	want := kf.SteadyStateCovariance()
	if math.Abs(kf.Covariance()-want) > 1e-9 {
		t.Errorf("expected covariance %.9f, got %.9f", want, kf.Covariance())
	}
}

func TestReinitialize(t *testing.T) {
	kf, err := New(0, 2, 1, 1)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	kf.Update(50)
	kf.Reinitialize(10, -3)

	if kf.Estimate() != 10 {
		t.Errorf("expected estimate 10, got %f", kf.Estimate())
	}
	if kf.Covariance() != 0 {
		t.Errorf("expected covariance clamped to 0, got %f", kf.Covariance())
	}
}
