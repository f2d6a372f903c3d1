// Package capture connects audio sources to the spectral analyzer.
//
// A Source pushes interleaved float32 frames into a Sink at its own cadence.
// The Pipeline is the Sink used in production: it downmixes each push into the
// rolling sample buffer and runs the analyzer whenever a full window is
// available. Sources are provided for audio file playback, a synthetic tone and
// UDP PCM ingest; the PortAudio device source lives in package device.
package capture
