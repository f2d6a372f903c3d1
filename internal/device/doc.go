// Package device captures audio from the default system input through
// PortAudio. It is kept apart from package capture because it requires cgo
// and the PortAudio shared library.
package device
