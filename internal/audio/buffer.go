package audio

// SampleBuffer is a fixed-capacity rolling buffer of mono samples.
//
// Interleaved multi-channel input is downmixed by averaging the channels of
// each frame. Once capacity is exceeded the oldest samples are overwritten, so
// the most recent Cap() samples are always available after the buffer fills.
//
// SampleBuffer is not safe for concurrent use; the capture pipeline owns it.
type SampleBuffer struct {
	data     []float64
	channels int

	write  int // next write position
	filled int // current fill level, never above len(data)

	// Statistics
	totalFrames   uint64 // mono samples appended since creation
	partialFrames uint64 // trailing samples dropped because they did not form a full frame
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	Capacity      int    `json:"capacity"`
	Channels      int    `json:"channels"`
	Filled        int    `json:"filled"`
	TotalFrames   uint64 `json:"total_frames"`
	PartialFrames uint64 `json:"partial_frames"`
}

// NewSampleBuffer creates a buffer holding at most capacity mono samples,
// fed with interleaved input of the given channel count.
func NewSampleBuffer(capacity, channels int) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if channels < 1 {
		channels = 1
	}

	return &SampleBuffer{
		data:     make([]float64, capacity),
		channels: channels,
	}
}

// Append downmixes interleaved samples to mono and appends them.
// It returns the number of mono samples appended. Empty input is a no-op.
func (b *SampleBuffer) Append(samples []float32) int {
	frames := len(samples) / b.channels
	if rem := len(samples) - frames*b.channels; rem > 0 {
		b.partialFrames++
	}

	if b.channels == 1 {
		for _, s := range samples {
			b.push(float64(s))
		}
		return frames
	}

	inv := 1 / float64(b.channels)
	for f := 0; f < frames; f++ {
		frame := samples[f*b.channels : (f+1)*b.channels]
		sum := 0.0
		for _, s := range frame {
			sum += float64(s)
		}
		b.push(sum * inv)
	}

	return frames
}

// AppendMono appends samples that are already mono.
func (b *SampleBuffer) AppendMono(samples []float64) {
	for _, s := range samples {
		b.push(s)
	}
}

func (b *SampleBuffer) push(s float64) {
	b.data[b.write] = s
	b.write++
	if b.write == len(b.data) {
		b.write = 0
	}
	if b.filled < len(b.data) {
		b.filled++
	}
	b.totalFrames++
}

// Full reports whether a complete window of Cap() samples is available.
func (b *SampleBuffer) Full() bool {
	return b.filled == len(b.data)
}

// Len returns the current number of samples held.
func (b *SampleBuffer) Len() int {
	return b.filled
}

// Cap returns the buffer capacity (the analysis block size).
func (b *SampleBuffer) Cap() int {
	return len(b.data)
}

// Channels returns the interleaved channel count this buffer downmixes from.
func (b *SampleBuffer) Channels() int {
	return b.channels
}

// Window copies the most recent Cap() samples into dst, oldest first.
// It returns false and leaves dst untouched until the buffer is full.
// dst must have length Cap().
func (b *SampleBuffer) Window(dst []float64) bool {
	if !b.Full() || len(dst) != len(b.data) {
		return false
	}

	// When full, the oldest sample sits at the write position.
	n := copy(dst, b.data[b.write:])
	copy(dst[n:], b.data[:b.write])
	return true
}

// Latest returns a copy of up to n most recent samples, oldest first.
func (b *SampleBuffer) Latest(n int) []float64 {
	if n > b.filled {
		n = b.filled
	}
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)
	size := len(b.data)
	start := (b.write - n + size) % size
	for i := range out {
		out[i] = b.data[(start+i)%size]
	}
	return out
}

// Reset empties the buffer without releasing its storage.
func (b *SampleBuffer) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.write = 0
	b.filled = 0
}

// Stats returns current buffer statistics
func (b *SampleBuffer) Stats() BufferStats {
	return BufferStats{
		Capacity:      len(b.data),
		Channels:      b.channels,
		Filled:        b.filled,
		TotalFrames:   b.totalFrames,
		PartialFrames: b.partialFrames,
	}
}
