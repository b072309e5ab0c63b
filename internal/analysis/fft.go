package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Freqs []float64 // Hz
	Power []float64
}

// PowerSpectrum transforms data sampled at sampleRate Hz. The mean is
// removed first so the DC bin only carries numerical noise.
func PowerSpectrum(data []float64, sampleRate float64) Spectrum {
	n := len(data)
	if n < 2 {
		return Spectrum{}
	}

	mean := stat.Mean(data, nil)
	centred := make([]float64, n)
	for i, v := range data {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centred)

	spec := Spectrum{
		Freqs: make([]float64, len(coeff)),
		Power: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		spec.Freqs[i] = fft.Freq(i) * sampleRate
		spec.Power[i] = cmplx.Abs(c) / float64(n)
	}
	return spec
}

// Dominant returns the strongest non-DC bin.
func (s Spectrum) Dominant() (freq, power float64) {
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > power {
			freq, power = s.Freqs[i], s.Power[i]
		}
	}
	return freq, power
}

// Band returns the bins with frequencies up to maxHz.
func (s Spectrum) Band(maxHz float64) Spectrum {
	n := 0
	for n < len(s.Freqs) && s.Freqs[n] <= maxHz {
		n++
	}
	return Spectrum{Freqs: s.Freqs[:n], Power: s.Power[:n]}
}
