// Package config loads the host settings file.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"argentum/host/logging"
	"argentum/host/serial"
	"argentum/protocol"
)

// AutoPort selects the first attached printer
const AutoPort = "auto"

// Config holds the host settings
type Config struct {
	Port             string
	Serial           serial.Config
	HandshakeTimeout time.Duration
	ReplyTimeout     time.Duration
	FilesDir         string
	Compress         bool
	LogLevel         string
}

type fileConfig struct {
	Port             string `toml:"port"`
	Driver           string `toml:"driver"`
	Baud             int    `toml:"baud"`
	PollInterval     string `toml:"poll_interval"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	ReplyTimeout     string `toml:"reply_timeout"`
	FilesDir         string `toml:"files_dir"`
	Compress         bool   `toml:"compress"`
	LogLevel         string `toml:"log_level"`
}

// Default returns the settings used when no file is given
func Default() Config {
	return Config{
		Port:             AutoPort,
		Serial:           *serial.DefaultConfig(""),
		HandshakeTimeout: protocol.HandshakeTimeout,
		ReplyTimeout:     protocol.ReplyTimeout,
		FilesDir:         ".",
		Compress:         true,
		LogLevel:         "info",
	}
}

// Load reads path and overlays the keys it defines onto Default
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		if port := strings.TrimSpace(raw.Port); port != "" {
			cfg.Port = port
		}
	}

	if meta.IsDefined("driver") {
		driver := strings.ToLower(strings.TrimSpace(raw.Driver))
		if !slices.Contains([]string{serial.DriverBugst, serial.DriverTarm, serial.DriverTTY}, driver) {
			return Config{}, fmt.Errorf("parse driver: unknown serial driver %q", raw.Driver)
		}
		cfg.Serial.Driver = driver
	}

	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return Config{}, fmt.Errorf("parse baud: %d is not a baud rate", raw.Baud)
		}
		cfg.Serial.Baud = raw.Baud
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"poll_interval", raw.PollInterval, &cfg.Serial.ReadTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"reply_timeout", raw.ReplyTimeout, &cfg.ReplyTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v <= 0 {
			return Config{}, fmt.Errorf("parse %s: must be positive", d.key)
		}
		*d.dst = v
	}

	if meta.IsDefined("files_dir") {
		cfg.FilesDir = strings.TrimSpace(raw.FilesDir)
	}

	if meta.IsDefined("compress") {
		cfg.Compress = raw.Compress
	}

	if meta.IsDefined("log_level") {
		level := strings.TrimSpace(raw.LogLevel)
		if _, ok := logging.ParseLevel(level); !ok {
			return Config{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
