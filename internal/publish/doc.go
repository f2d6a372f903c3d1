// Package publish fans the normalized spectrum out to connected subscribers
// at a fixed rate.
//
// Each tick takes one snapshot, encodes one immutable frame and hands it to
// every subscriber's single-slot mailbox without blocking. A dedicated writer
// goroutine per subscriber performs the network write with a deadline, so a
// stalled client only ever delays itself. A subscriber whose write fails is
// removed and its connection closed.
package publish
