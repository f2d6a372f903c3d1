// Package audio holds the rolling mono sample buffer fed by capture sources and
// the file decoders (WAV, MP3, FLAC, Ogg Vorbis) used by the file capture
// source.
package audio
