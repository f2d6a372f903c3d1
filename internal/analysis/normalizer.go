package analysis

import (
	"fmt"
	"math"
	"sync"

	"github.com/NikitaSH999/AudioViz/internal/metrics"
)

// SmoothedSource provides the current smoothing state to the normalizer.
type SmoothedSource interface {
	Smoothed() BandSpectrum
}

// NormalizerConfig contains normalization parameters
type NormalizerConfig struct {
	BoostExponent float64 // top-band boost is 10^BoostExponent
	PeakDecay     float64 // per-snapshot multiplicative peak release
	PeakFloor     float64 // minimum peak, guards the division during silence
	Gamma         float64 // output exponent applied after division
}

// DefaultNormalizerConfig returns the stock normalizer settings
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		BoostExponent: 0.5,
		PeakDecay:     0.995,
		PeakFloor:     0.01,
		Gamma:         1.2,
	}
}

// Validate checks normalizer parameters
func (c NormalizerConfig) Validate() error {
	if c.BoostExponent < 0 {
		return fmt.Errorf("boost exponent must be non-negative, got %f", c.BoostExponent)
	}
	if c.PeakDecay <= 0 || c.PeakDecay > 1 {
		return fmt.Errorf("peak decay must be in (0, 1], got %f", c.PeakDecay)
	}
	if c.PeakFloor <= 0 {
		return fmt.Errorf("peak floor must be positive, got %f", c.PeakFloor)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %f", c.Gamma)
	}
	return nil
}

// Normalizer rescales smoothed band magnitudes into [0, 1] with a per-band
// boost curve and a slow-release peak tracker.
type Normalizer struct {
	source  SmoothedSource
	config  NormalizerConfig
	metrics *metrics.Metrics

	mu      sync.Mutex
	boost   []float64
	boosted []float64
	peak    float64 // PeakTracker
}

// NewNormalizer creates a normalizer reading from source.
func NewNormalizer(source SmoothedSource, config NormalizerConfig, m *metrics.Metrics) (*Normalizer, error) {
	if source == nil {
		return nil, fmt.Errorf("normalizer source is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalizer config: %w", err)
	}

	return &Normalizer{
		source:  source,
		config:  config,
		metrics: m,
		peak:    config.PeakFloor,
	}, nil
}

// Snapshot pulls the current smoothing state and returns a fresh slice of
// normalized values, each finite and within [0, 1]. Every call advances the
// peak tracker by one step.
func (n *Normalizer) Snapshot() []float64 {
	smoothed := n.source.Smoothed()

	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.boost) != len(smoothed) {
		n.boost = logspace(0, n.config.BoostExponent, len(smoothed))
		n.boosted = make([]float64, len(smoothed))
	}

	current := 0.0
	for i, v := range smoothed {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		b := v * n.boost[i]
		if math.IsInf(b, 0) {
			b = math.MaxFloat64
		}
		n.boosted[i] = b
		if b > current {
			current = b
		}
	}

	if current > n.peak {
		n.peak = current
	} else {
		n.peak *= n.config.PeakDecay
	}
	if n.peak < n.config.PeakFloor {
		n.peak = n.config.PeakFloor
	}
	n.metrics.SetNormalizerPeak(n.peak)

	out := make([]float64, len(n.boosted))
	for i, b := range n.boosted {
		out[i] = clamp01(math.Pow(b/n.peak, n.config.Gamma))
	}
	return out
}

// Peak returns the stored peak.
func (n *Normalizer) Peak() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peak
}

// Config returns the normalizer configuration.
func (n *Normalizer) Config() NormalizerConfig {
	return n.config
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
