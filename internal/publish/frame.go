package publish

import (
	"encoding/json"
	"fmt"
)

// FrameType is the message type of spectrum frames.
const FrameType = "fft"

// Frame is one outbound spectrum message.
type Frame struct {
	Type  string    `json:"type"`
	Bands []float64 `json:"bands"`
	Peak  float64   `json:"peak"`
}

// NewFrame builds a frame from normalized bands. Peak is the largest band.
func NewFrame(bands []float64) Frame {
	peak := 0.0
	for _, v := range bands {
		if v > peak {
			peak = v
		}
	}
	if bands == nil {
		bands = []float64{}
	}
	return Frame{Type: FrameType, Bands: bands, Peak: peak}
}

// Encode returns the JSON wire form of the frame.
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}
