// Package track stores the "now playing" record pushed by the browser
// userscript and serves it back in the Tuna-compatible JSON shape.
package track
