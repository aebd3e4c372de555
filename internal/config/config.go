package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP listener configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Address        string `yaml:"address"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
}

// StorageConfig contains recording storage configuration
type StorageConfig struct {
	Dir        string `yaml:"dir"`
	FilePrefix string `yaml:"file_prefix"`
}

// AudioConfig contains audio format parameters
type AudioConfig struct {
	DefaultSampleRate int `yaml:"default_sample_rate"`
	Channels          int `yaml:"channels"`
	BitDepth          int `yaml:"bit_depth"`
}

// PlaybackConfig contains playback output configuration
type PlaybackConfig struct {
	Enabled         bool `yaml:"enabled"`
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration the service runs with when no
// config file is present. The reference device pushes 16 kHz mono
// 16-bit PCM and stays well under 50 MB per request.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Address:        "0.0.0.0",
			MaxBodyBytes:   50 << 20, // 50 MB
			RequestTimeout: 30,
		},
		Storage: StorageConfig{
			Dir:        "recordings",
			FilePrefix: "recording",
		},
		Audio: AudioConfig{
			DefaultSampleRate: 16000,
			Channels:          1,
			BitDepth:          16,
		},
		Playback: PlaybackConfig{
			Enabled:         true,
			FramesPerBuffer: 1024,
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

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", s.MaxBodyBytes)
	}

	if s.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", s.RequestTimeout)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}

	if s.FilePrefix == "" {
		return fmt.Errorf("file_prefix cannot be empty")
	}

	if strings.ContainsAny(s.FilePrefix, "/\\") {
		return fmt.Errorf("file_prefix must not contain path separators, got %q", s.FilePrefix)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.DefaultSampleRate <= 0 {
		return fmt.Errorf("default_sample_rate must be positive, got %d", a.DefaultSampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if !p.Enabled {
		return nil
	}

	if p.FramesPerBuffer < 64 || p.FramesPerBuffer > 16384 {
		return fmt.Errorf("frames_per_buffer must be between 64 and 16384, got %d", p.FramesPerBuffer)
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

	return nil
}

// GetRequestTimeout returns the request timeout as a time.Duration
func (s *ServerConfig) GetRequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}
