// Package protocol implements the UDP PCM ingest packet format.
// Every packet starts with an 8-byte big-endian header followed by either a
// format announcement (sample rate and source name) or a sequenced block of
// interleaved little-endian float32 samples.
package protocol
