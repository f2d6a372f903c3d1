package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	HTTP       HTTPConfig       `yaml:"http"`
	Capture    CaptureConfig    `yaml:"capture"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WebSocketConfig contains the spectrum WebSocket server configuration
type WebSocketConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// HTTPConfig contains HTTP API server configuration (track API, health, metrics)
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// CaptureConfig contains audio capture parameters
type CaptureConfig struct {
	Source          string    `yaml:"source"` // portaudio, udp, file, tone
	SampleRate      int       `yaml:"sample_rate"`
	Channels        int       `yaml:"channels"`
	FramesPerBuffer int       `yaml:"frames_per_buffer"`
	FilePath        string    `yaml:"file_path"`
	Loop            bool      `yaml:"loop"`
	ToneFrequency   float64   `yaml:"tone_frequency"` // Hz
	ToneAmplitude   float64   `yaml:"tone_amplitude"`
	UDP             UDPConfig `yaml:"udp"`
}

// UDPConfig contains the UDP PCM ingest listener configuration
type UDPConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
}

// AnalysisConfig contains spectral analysis parameters
type AnalysisConfig struct {
	BlockSize    int     `yaml:"block_size"`
	NumBands     int     `yaml:"num_bands"`
	MinFrequency float64 `yaml:"min_frequency"` // Hz
	MaxFrequency float64 `yaml:"max_frequency"` // Hz
	Smoothing    float64 `yaml:"smoothing"`
}

// NormalizerConfig contains peak normalization parameters
type NormalizerConfig struct {
	BoostExponent float64 `yaml:"boost_exponent"`
	PeakDecay     float64 `yaml:"peak_decay"`
	PeakFloor     float64 `yaml:"peak_floor"`
	Gamma         float64 `yaml:"gamma"`
}

// BroadcastConfig contains publisher parameters
type BroadcastConfig struct {
	Rate           int `yaml:"rate"`             // ticks per second
	WriteTimeoutMs int `yaml:"write_timeout_ms"` // per-subscriber write deadline
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration. Load decodes on top of it.
func Default() *Config {
	return &Config{
		WebSocket: WebSocketConfig{
			Port:    8765,
			Address: "localhost",
			Path:    "/",
		},
		HTTP: HTTPConfig{
			Port:    1608,
			Address: "localhost",
			Enabled: true,
		},
		Capture: CaptureConfig{
			Source:          "portaudio",
			SampleRate:      44100,
			Channels:        2,
			FramesPerBuffer: 512,
			Loop:            true,
			ToneFrequency:   1000,
			ToneAmplitude:   0.5,
			UDP: UDPConfig{
				Port:        4444,
				BindAddress: "0.0.0.0",
				BufferSize:  65536,
			},
		},
		Analysis: AnalysisConfig{
			BlockSize:    2048,
			NumBands:     128,
			MinFrequency: 20,
			MaxFrequency: 16000,
			Smoothing:    0.5,
		},
		Normalizer: NormalizerConfig{
			BoostExponent: 0.5,
			PeakDecay:     0.995,
			PeakFloor:     0.01,
			Gamma:         1.2,
		},
		Broadcast: BroadcastConfig{
			Rate:           60,
			WriteTimeoutMs: 250,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of every configuration section
func (c *Config) Validate() error {
	if err := c.WebSocket.Validate(); err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Analysis.Validate(c.Capture.SampleRate); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Normalizer.Validate(); err != nil {
		return fmt.Errorf("normalizer config: %w", err)
	}

	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates WebSocket configuration
func (w *WebSocketConfig) Validate() error {
	if w.Port < 1 || w.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", w.Port)
	}

	if w.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if w.Path == "" || w.Path[0] != '/' {
		return fmt.Errorf("path must start with '/', got '%s'", w.Path)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	switch c.Source {
	case "portaudio", "udp", "tone":
	case "file":
		if c.FilePath == "" {
			return fmt.Errorf("file_path cannot be empty for the file source")
		}
	default:
		return fmt.Errorf("source must be one of [portaudio, udp, file, tone], got '%s'", c.Source)
	}

	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", c.SampleRate)
	}

	if c.Channels < 1 || c.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", c.Channels)
	}

	if c.FramesPerBuffer < 16 {
		return fmt.Errorf("frames_per_buffer must be at least 16, got %d", c.FramesPerBuffer)
	}

	if c.Source == "tone" {
		if c.ToneFrequency <= 0 || c.ToneFrequency >= float64(c.SampleRate)/2 {
			return fmt.Errorf("tone_frequency must be between 0 and Nyquist (%d Hz), got %f",
				c.SampleRate/2, c.ToneFrequency)
		}
		if c.ToneAmplitude < 0 || c.ToneAmplitude > 1 {
			return fmt.Errorf("tone_amplitude must be between 0 and 1, got %f", c.ToneAmplitude)
		}
	}

	if c.Source == "udp" {
		if err := c.UDP.Validate(); err != nil {
			return fmt.Errorf("udp: %w", err)
		}
	}

	return nil
}

// Validate validates UDP ingest configuration
func (u *UDPConfig) Validate() error {
	if u.Port < 1 || u.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", u.Port)
	}

	if u.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if u.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", u.BufferSize)
	}

	return nil
}

// Validate validates analysis configuration against the capture sample rate
func (a *AnalysisConfig) Validate(sampleRate int) error {
	if a.BlockSize < 64 || a.BlockSize&(a.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a power of two of at least 64, got %d", a.BlockSize)
	}

	if a.NumBands < 1 || a.NumBands > 1024 {
		return fmt.Errorf("num_bands must be between 1 and 1024, got %d", a.NumBands)
	}

	if a.MinFrequency <= 0 {
		return fmt.Errorf("min_frequency must be positive, got %f", a.MinFrequency)
	}

	if a.MaxFrequency <= a.MinFrequency {
		return fmt.Errorf("max_frequency (%f) must be greater than min_frequency (%f)",
			a.MaxFrequency, a.MinFrequency)
	}

	if sampleRate > 0 && a.MinFrequency >= float64(sampleRate)/2 {
		return fmt.Errorf("min_frequency (%f) must be below Nyquist (%d Hz)", a.MinFrequency, sampleRate/2)
	}

	if a.Smoothing < 0 || a.Smoothing >= 1 {
		return fmt.Errorf("smoothing must be in [0, 1), got %f", a.Smoothing)
	}

	return nil
}

// Validate validates normalizer configuration
func (n *NormalizerConfig) Validate() error {
	if n.BoostExponent < 0 {
		return fmt.Errorf("boost_exponent cannot be negative, got %f", n.BoostExponent)
	}

	if n.PeakDecay <= 0 || n.PeakDecay >= 1 {
		return fmt.Errorf("peak_decay must be in (0, 1), got %f", n.PeakDecay)
	}

	if n.PeakFloor <= 0 {
		return fmt.Errorf("peak_floor must be positive, got %f", n.PeakFloor)
	}

	if n.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %f", n.Gamma)
	}

	return nil
}

// Validate validates broadcast configuration
func (b *BroadcastConfig) Validate() error {
	if b.Rate < 1 || b.Rate > 240 {
		return fmt.Errorf("rate must be between 1 and 240 ticks per second, got %d", b.Rate)
	}

	if b.WriteTimeoutMs < 1 {
		return fmt.Errorf("write_timeout_ms must be at least 1, got %d", b.WriteTimeoutMs)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output may be stdout, stderr or a file path.
	return nil
}

// GetBroadcastInterval returns the period of the broadcast loop
func (b *BroadcastConfig) GetBroadcastInterval() time.Duration {
	return time.Second / time.Duration(b.Rate)
}

// GetWriteTimeout returns the per-subscriber write timeout as a time.Duration
func (b *BroadcastConfig) GetWriteTimeout() time.Duration {
	return time.Duration(b.WriteTimeoutMs) * time.Millisecond
}

// GetBufferDuration returns how much audio one capture callback carries
func (c *CaptureConfig) GetBufferDuration() time.Duration {
	return time.Duration(c.FramesPerBuffer) * time.Second / time.Duration(c.SampleRate)
}

// FrequencyPerBin returns the FFT bin spacing in Hz for the given sample rate
func (a *AnalysisConfig) FrequencyPerBin(sampleRate int) float64 {
	return float64(sampleRate) / float64(a.BlockSize)
}
