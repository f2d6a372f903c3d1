package analysis

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/cwbudde/algo-dsp/dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// AnalyzerConfig contains spectral analysis parameters
type AnalyzerConfig struct {
	BlockSize    int     // FFT length and analysis window size
	NumBands     int     // number of log-spaced output bands
	SampleRate   int     // Hz
	MinFrequency float64 // Hz, lower edge of the first band
	MaxFrequency float64 // Hz, upper edge of the last band
	Smoothing    float64 // EMA coefficient in [0, 1); higher responds slower
}

// DefaultAnalyzerConfig returns the stock analysis settings for sampleRate.
func DefaultAnalyzerConfig(sampleRate int) AnalyzerConfig {
	return AnalyzerConfig{
		BlockSize:    2048,
		NumBands:     128,
		SampleRate:   sampleRate,
		MinFrequency: 20,
		MaxFrequency: 16000,
		Smoothing:    0.5,
	}
}

// Validate checks the parameters the analyzer cannot run without
func (c AnalyzerConfig) Validate() error {
	if c.BlockSize < 2 || c.BlockSize%2 != 0 {
		return fmt.Errorf("block size must be even and at least 2, got %d", c.BlockSize)
	}
	if c.NumBands < 1 {
		return fmt.Errorf("band count must be at least 1, got %d", c.NumBands)
	}
	if c.SampleRate < 1 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.MinFrequency <= 0 || c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("frequency range must satisfy 0 < min < max, got [%f, %f]",
			c.MinFrequency, c.MaxFrequency)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("smoothing must be in [0, 1), got %f", c.Smoothing)
	}
	return nil
}

// BandSpectrum is an ordered low-to-high sequence of band magnitudes.
type BandSpectrum []float64

// Max returns the largest value in the spectrum, or 0 when it is empty.
func (s BandSpectrum) Max() float64 {
	peak := 0.0
	for i, v := range s {
		if i == 0 || v > peak {
			peak = v
		}
	}
	return peak
}

// Analyzer turns windows of mono samples into smoothed log-band magnitudes.
//
// Update belongs to the capture goroutine. Smoothed and Raw may be called from
// any goroutine: each Update publishes fresh immutable copies through atomic
// pointers, so readers never block the writer.
type Analyzer struct {
	config AnalyzerConfig
	layout *BandLayout

	// Update-only scratch
	coeffs   []float64 // Blackman window
	fft      *fourier.FFT
	frame    []float64
	bins     []complex128
	re       []float64
	im       []float64
	mags     []float64
	raw      BandSpectrum
	smoothed BandSpectrum // SmoothingState

	publishedSmoothed atomic.Pointer[BandSpectrum]
	publishedRaw      atomic.Pointer[BandSpectrum]
	updates           atomic.Uint64
}

// NewAnalyzer creates an analyzer for the given configuration
func NewAnalyzer(config AnalyzerConfig) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer config: %w", err)
	}

	bins := config.BlockSize/2 + 1
	a := &Analyzer{
		config: config,
		layout: NewBandLayout(config.NumBands, config.BlockSize, config.SampleRate,
			config.MinFrequency, config.MaxFrequency),
		coeffs:   window.Generate(window.TypeBlackman, config.BlockSize),
		fft:      fourier.NewFFT(config.BlockSize),
		frame:    make([]float64, config.BlockSize),
		bins:     make([]complex128, bins),
		re:       make([]float64, bins),
		im:       make([]float64, bins),
		mags:     make([]float64, bins),
		raw:      make(BandSpectrum, config.NumBands),
		smoothed: make(BandSpectrum, config.NumBands),
	}

	zero := make(BandSpectrum, config.NumBands)
	a.publishedSmoothed.Store(&zero)
	a.publishedRaw.Store(&zero)

	return a, nil
}

// Update analyses one window of BlockSize mono samples and folds the result
// into the smoothing state. Shorter windows are zero-padded and longer ones
// truncated to the most recent BlockSize samples.
func (a *Analyzer) Update(samples []float64) {
	if len(samples) > len(a.frame) {
		samples = samples[len(samples)-len(a.frame):]
	}
	n := copy(a.frame, samples)
	for i := n; i < len(a.frame); i++ {
		a.frame[i] = 0
	}

	_ = window.ApplyCoefficientsInPlace(a.frame, a.coeffs)

	a.bins = a.fft.Coefficients(a.bins, a.frame)
	for i, c := range a.bins {
		a.re[i] = real(c)
		a.im[i] = imag(c)
	}
	spectrum.MagnitudeFromParts(a.mags, a.re, a.im)

	a.layout.Aggregate(a.raw, a.mags)

	s := a.config.Smoothing
	for i, v := range a.raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
			a.raw[i] = 0
		}
		a.smoothed[i] = a.smoothed[i]*s + v*(1-s)
	}

	smoothed := append(BandSpectrum(nil), a.smoothed...)
	raw := append(BandSpectrum(nil), a.raw...)
	a.publishedSmoothed.Store(&smoothed)
	a.publishedRaw.Store(&raw)
	a.updates.Add(1)
}

// Smoothed returns the latest smoothing state. The returned slice is shared
// and must not be modified.
func (a *Analyzer) Smoothed() BandSpectrum {
	return *a.publishedSmoothed.Load()
}

// Raw returns the unsmoothed band spectrum of the most recent window. The
// returned slice is shared and must not be modified.
func (a *Analyzer) Raw() BandSpectrum {
	return *a.publishedRaw.Load()
}

// Updates returns how many windows have been analysed.
func (a *Analyzer) Updates() uint64 {
	return a.updates.Load()
}

// Layout returns the band layout.
func (a *Analyzer) Layout() *BandLayout {
	return a.layout
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}
