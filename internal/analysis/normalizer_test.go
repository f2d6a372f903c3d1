package analysis

import (
	"math"
	"testing"
)

// staticSource serves a fixed smoothing state.
type staticSource struct {
	bands BandSpectrum
}

func (s *staticSource) Smoothed() BandSpectrum { return s.bands }

func newTestNormalizer(t *testing.T, src SmoothedSource) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(src, DefaultNormalizerConfig(), nil)
	if err != nil {
		t.Fatalf("Failed to create normalizer: %v", err)
	}
	return n
}

func assertInRange(t *testing.T, out []float64) {
	t.Helper()
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			t.Fatalf("Band %d: value %g outside [0, 1]", i, v)
		}
	}
}

func TestNewNormalizerValidation(t *testing.T) {
	src := &staticSource{bands: make(BandSpectrum, 4)}

	if _, err := NewNormalizer(nil, DefaultNormalizerConfig(), nil); err == nil {
		t.Error("Expected error for nil source")
	}

	tests := []struct {
		name   string
		mutate func(*NormalizerConfig)
	}{
		{"negative boost", func(c *NormalizerConfig) { c.BoostExponent = -1 }},
		{"zero decay", func(c *NormalizerConfig) { c.PeakDecay = 0 }},
		{"decay above one", func(c *NormalizerConfig) { c.PeakDecay = 1.01 }},
		{"zero floor", func(c *NormalizerConfig) { c.PeakFloor = 0 }},
		{"zero gamma", func(c *NormalizerConfig) { c.Gamma = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultNormalizerConfig()
			tt.mutate(&config)
			if _, err := NewNormalizer(src, config, nil); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestNormalizerSilence(t *testing.T) {
	n := newTestNormalizer(t, &staticSource{bands: make(BandSpectrum, 128)})

	for i := 0; i < 5; i++ {
		out := n.Snapshot()
		if len(out) != 128 {
			t.Fatalf("Expected 128 values, got %d", len(out))
		}
		for j, v := range out {
			if v != 0 {
				t.Fatalf("Band %d: expected 0 for silence, got %g", j, v)
			}
		}
	}

	if n.Peak() != 0.01 {
		t.Errorf("Expected peak at floor 0.01, got %g", n.Peak())
	}
}

func TestNormalizerBoostCurve(t *testing.T) {
	bands := make(BandSpectrum, 16)
	for i := range bands {
		bands[i] = 1
	}
	n := newTestNormalizer(t, &staticSource{bands: bands})

	out := n.Snapshot()
	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			t.Errorf("Expected boost to increase with band index: out[%d]=%f <= out[%d]=%f",
				i, out[i], i-1, out[i-1])
		}
	}

	if out[len(out)-1] != 1 {
		t.Errorf("Expected top band to read 1, got %f", out[len(out)-1])
	}

	// Lowest band: (1 / 10^0.5) ^ 1.2
	want := math.Pow(1/math.Sqrt(10), 1.2)
	if math.Abs(out[0]-want) > 1e-9 {
		t.Errorf("Expected lowest band %f, got %f", want, out[0])
	}
}

func TestNormalizerAdversarialInput(t *testing.T) {
	tests := []struct {
		name  string
		bands BandSpectrum
	}{
		{"one huge band", BandSpectrum{1, 1, 1e300, 1}},
		{"max float", BandSpectrum{math.MaxFloat64, 0.5, 0.5, math.MaxFloat64}},
		{"infinity", BandSpectrum{0.1, math.Inf(1), 0.1, 0.1}},
		{"nan", BandSpectrum{math.NaN(), 0.3, 0.2, 0.1}},
		{"negative", BandSpectrum{-5, 0.3, 0.2, 0.1}},
		{"tiny", BandSpectrum{1e-300, 1e-300, 1e-300, 1e-300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNormalizer(t, &staticSource{bands: tt.bands})
			for i := 0; i < 3; i++ {
				assertInRange(t, n.Snapshot())
			}
			if p := n.Peak(); math.IsNaN(p) || math.IsInf(p, 0) {
				t.Errorf("Expected finite peak, got %g", p)
			}
		})
	}
}

func TestPeakDecay(t *testing.T) {
	src := &staticSource{bands: BandSpectrum{0.5, 0, 0, 0}}
	n := newTestNormalizer(t, src)

	n.Snapshot()
	if n.Peak() != 0.5 {
		t.Fatalf("Expected peak 0.5 after loud frame, got %g", n.Peak())
	}

	src.bands = BandSpectrum{0, 0, 0, 0}
	prev := n.Peak()
	reachedFloor := false
	for i := 0; i < 2000; i++ {
		n.Snapshot()
		peak := n.Peak()

		if peak < 0.01 {
			t.Fatalf("Frame %d: peak %g fell below floor", i, peak)
		}

		if !reachedFloor {
			want := prev * 0.995
			if want < 0.01 {
				want = 0.01
				reachedFloor = true
			}
			if math.Abs(peak-want) > 1e-12 {
				t.Fatalf("Frame %d: expected peak %g, got %g", i, want, peak)
			}
			if peak >= prev {
				t.Fatalf("Frame %d: peak did not decrease (%g -> %g)", i, prev, peak)
			}
		} else if peak != 0.01 {
			t.Fatalf("Frame %d: expected peak to stay at floor, got %g", i, peak)
		}
		prev = peak
	}

	if !reachedFloor {
		t.Error("Expected peak to reach the floor")
	}
}

func TestPeakFollowsLouderInput(t *testing.T) {
	src := &staticSource{bands: BandSpectrum{0.2, 0, 0, 0}}
	n := newTestNormalizer(t, src)

	n.Snapshot()
	src.bands = BandSpectrum{0.8, 0, 0, 0}
	out := n.Snapshot()

	if n.Peak() != 0.8 {
		t.Errorf("Expected peak to jump to 0.8, got %g", n.Peak())
	}
	if out[0] != 1 {
		t.Errorf("Expected loudest band to read 1, got %f", out[0])
	}
}

func TestSnapshotReturnsFreshSlice(t *testing.T) {
	n := newTestNormalizer(t, &staticSource{bands: BandSpectrum{0.5, 0.5}})

	first := n.Snapshot()
	first[0] = 42
	second := n.Snapshot()

	if second[0] == 42 {
		t.Error("Expected Snapshot to return a fresh slice each call")
	}
}
