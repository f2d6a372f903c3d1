package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}

	if cfg.Analysis.BlockSize != 2048 {
		t.Errorf("Expected block size 2048, got %d", cfg.Analysis.BlockSize)
	}
	if cfg.Analysis.NumBands != 128 {
		t.Errorf("Expected 128 bands, got %d", cfg.Analysis.NumBands)
	}
	if cfg.Analysis.Smoothing != 0.5 {
		t.Errorf("Expected smoothing 0.5, got %f", cfg.Analysis.Smoothing)
	}
	if cfg.WebSocket.Port != 8765 {
		t.Errorf("Expected websocket port 8765, got %d", cfg.WebSocket.Port)
	}
	if cfg.HTTP.Port != 1608 {
		t.Errorf("Expected http port 1608, got %d", cfg.HTTP.Port)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid websocket port",
			mutate:      func(c *Config) { c.WebSocket.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "websocket path without slash",
			mutate:      func(c *Config) { c.WebSocket.Path = "fft" },
			expectError: true,
			errorMsg:    "path must start with '/'",
		},
		{
			name:        "http disabled skips port check",
			mutate:      func(c *Config) { c.HTTP.Enabled = false; c.HTTP.Port = 0 },
			expectError: false,
		},
		{
			name:        "unknown capture source",
			mutate:      func(c *Config) { c.Capture.Source = "wasapi" },
			expectError: true,
			errorMsg:    "source must be one of",
		},
		{
			name:        "file source without path",
			mutate:      func(c *Config) { c.Capture.Source = "file" },
			expectError: true,
			errorMsg:    "file_path cannot be empty",
		},
		{
			name:        "block size not a power of two",
			mutate:      func(c *Config) { c.Analysis.BlockSize = 2000 },
			expectError: true,
			errorMsg:    "block_size must be a power of two",
		},
		{
			name:        "smoothing of one",
			mutate:      func(c *Config) { c.Analysis.Smoothing = 1 },
			expectError: true,
			errorMsg:    "smoothing must be in [0, 1)",
		},
		{
			name:        "inverted frequency range",
			mutate:      func(c *Config) { c.Analysis.MaxFrequency = 10 },
			expectError: true,
			errorMsg:    "must be greater than min_frequency",
		},
		{
			name:        "peak decay of one",
			mutate:      func(c *Config) { c.Normalizer.PeakDecay = 1 },
			expectError: true,
			errorMsg:    "peak_decay must be in (0, 1)",
		},
		{
			name:        "zero broadcast rate",
			mutate:      func(c *Config) { c.Broadcast.Rate = 0 },
			expectError: true,
			errorMsg:    "rate must be between 1 and 240",
		},
		{
			name: "tone above nyquist",
			mutate: func(c *Config) {
				c.Capture.Source = "tone"
				c.Capture.ToneFrequency = 30000
			},
			expectError: true,
			errorMsg:    "tone_frequency must be between 0 and Nyquist",
		},
		{
			name: "udp source with bad port",
			mutate: func(c *Config) {
				c.Capture.Source = "udp"
				c.Capture.UDP.Port = 0
			},
			expectError: true,
			errorMsg:    "udp: port must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
websocket:
  port: 9000
  address: "0.0.0.0"
  path: "/fft"
capture:
  source: "tone"
  sample_rate: 48000
  channels: 1
  tone_frequency: 440
analysis:
  block_size: 4096
  num_bands: 64
logging:
  level: "debug"
  format: "json"
  output: "stderr"
`,
			check: func(t *testing.T, c *Config) {
				if c.WebSocket.Port != 9000 || c.WebSocket.Path != "/fft" {
					t.Errorf("Expected websocket 9000 /fft, got %d %s", c.WebSocket.Port, c.WebSocket.Path)
				}
				if c.Capture.SampleRate != 48000 || c.Capture.Channels != 1 {
					t.Errorf("Expected 48000 Hz mono, got %d Hz %d ch", c.Capture.SampleRate, c.Capture.Channels)
				}
				if c.Analysis.BlockSize != 4096 || c.Analysis.NumBands != 64 {
					t.Errorf("Expected 4096/64, got %d/%d", c.Analysis.BlockSize, c.Analysis.NumBands)
				}
				// Untouched sections keep their defaults.
				if c.Normalizer.Gamma != 1.2 {
					t.Errorf("Expected default gamma 1.2, got %f", c.Normalizer.Gamma)
				}
				if c.HTTP.Port != 1608 {
					t.Errorf("Expected default http port 1608, got %d", c.HTTP.Port)
				}
			},
		},
		{
			name:       "empty file yields defaults",
			configYAML: ``,
			check: func(t *testing.T, c *Config) {
				if c.Capture.Source != "portaudio" {
					t.Errorf("Expected default source portaudio, got %s", c.Capture.Source)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
websocket:
  port: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "semantic error",
			configYAML: `
normalizer:
  gamma: -1
`,
			expectError: true,
			errorMsg:    "gamma must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if tt.check != nil {
				tt.check(t, config)
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatalf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	broadcast := BroadcastConfig{Rate: 50, WriteTimeoutMs: 250}

	if broadcast.GetBroadcastInterval() != 20*time.Millisecond {
		t.Errorf("Expected 20ms, got %v", broadcast.GetBroadcastInterval())
	}

	if broadcast.GetWriteTimeout() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", broadcast.GetWriteTimeout())
	}

	capture := CaptureConfig{SampleRate: 48000, FramesPerBuffer: 480}
	if capture.GetBufferDuration() != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %v", capture.GetBufferDuration())
	}

	analysis := AnalysisConfig{BlockSize: 2048}
	if got := analysis.FrequencyPerBin(44100); got < 21.53 || got > 21.54 {
		t.Errorf("Expected ~21.53 Hz per bin, got %f", got)
	}
}
