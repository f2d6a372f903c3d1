package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BandRange is the half-open FFT bin range [Low, High) feeding one band.
type BandRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Empty reports whether the range maps to no FFT bins. That only happens when
// Low is at or beyond the bin count, in which case the band reads zero.
func (r BandRange) Empty() bool {
	return r.High <= r.Low
}

// BandLayout maps log-spaced frequency bands onto FFT bins. It is computed
// once and never changes for the lifetime of an analyzer.
type BandLayout struct {
	edges      []float64 // numBands+1 frequencies in Hz
	ranges     []BandRange
	bins       int
	freqPerBin float64
}

// NewBandLayout partitions [minFreq, maxFreq] into numBands bands whose edges
// are evenly spaced in log10(frequency), and maps each band onto the
// blockSize/2+1 magnitude bins of a real FFT at sampleRate.
func NewBandLayout(numBands, blockSize, sampleRate int, minFreq, maxFreq float64) *BandLayout {
	bins := blockSize/2 + 1
	freqPerBin := float64(sampleRate) / float64(blockSize)

	edges := logspace(math.Log10(minFreq), math.Log10(maxFreq), numBands+1)
	edges[0] = minFreq
	edges[numBands] = maxFreq

	ranges := make([]BandRange, numBands)
	for i := range ranges {
		low := int(edges[i] / freqPerBin)
		high := int(edges[i+1] / freqPerBin)
		if high < low+1 {
			high = low + 1
		}
		if high > bins {
			high = bins
		}
		ranges[i] = BandRange{Low: low, High: high}
	}

	return &BandLayout{
		edges:      edges,
		ranges:     ranges,
		bins:       bins,
		freqPerBin: freqPerBin,
	}
}

// logspace returns n points 10^x for x evenly spaced from start to stop
// inclusive.
func logspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	lo, hi := math.Pow(10, start), math.Pow(10, stop)
	if n == 1 {
		out[0] = lo
		return out
	}

	floats.LogSpan(out, lo, hi)
	out[0], out[n-1] = lo, hi
	return out
}

// NumBands returns the number of bands.
func (l *BandLayout) NumBands() int { return len(l.ranges) }

// Bins returns the number of FFT magnitude bins (blockSize/2+1).
func (l *BandLayout) Bins() int { return l.bins }

// FrequencyPerBin returns the FFT bin spacing in Hz.
func (l *BandLayout) FrequencyPerBin() float64 { return l.freqPerBin }

// Edges returns a copy of the numBands+1 band edge frequencies.
func (l *BandLayout) Edges() []float64 {
	return append([]float64(nil), l.edges...)
}

// Ranges returns a copy of the per-band bin ranges.
func (l *BandLayout) Ranges() []BandRange {
	return append([]BandRange(nil), l.ranges...)
}

// BinFor returns the truncated FFT bin index for freq.
func (l *BandLayout) BinFor(freq float64) int {
	return int(freq / l.freqPerBin)
}

// BandFor returns the index of the band whose [start, end) frequency interval
// contains freq, or -1 when freq is outside the analysed range.
func (l *BandLayout) BandFor(freq float64) int {
	if freq < l.edges[0] || freq > l.edges[len(l.edges)-1] {
		return -1
	}
	for i := 0; i < len(l.ranges); i++ {
		if freq < l.edges[i+1] {
			return i
		}
	}
	return len(l.ranges) - 1
}

// Aggregate writes the per-band maximum of magnitudes into dst. Bands whose
// range is empty read zero. len(dst) must equal NumBands().
func (l *BandLayout) Aggregate(dst, magnitudes []float64) {
	for i, r := range l.ranges {
		high := r.High
		if high > len(magnitudes) {
			high = len(magnitudes)
		}
		if r.Low >= high {
			dst[i] = 0
			continue
		}

		peak := magnitudes[r.Low]
		for _, m := range magnitudes[r.Low+1 : high] {
			if m > peak {
				peak = m
			}
		}
		dst[i] = peak
	}
}
