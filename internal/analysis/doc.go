// Package analysis turns windows of mono audio into a log-band spectrum.
//
// The Analyzer applies a Blackman window, runs a real FFT and folds the
// magnitude bins into log-spaced bands (maximum per band), then blends each
// result into an exponentially smoothed spectrum. The Normalizer pulls that
// smoothed spectrum, applies a per-band boost curve and an adaptive peak
// tracker, and produces values in [0, 1] suitable for display.
package analysis
