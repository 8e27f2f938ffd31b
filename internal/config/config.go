// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the bench configuration from a TOML file layered
// over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration values.
type Config struct {
	Serial      SerialConfig      `toml:"serial"`
	Camera      CameraConfig      `toml:"camera"`
	Chart       ChartConfig       `toml:"chart"`
	Overlay     OverlayConfig     `toml:"overlay"`
	Recording   RecordingConfig   `toml:"recording"`
	Calibration CalibrationConfig `toml:"calibration"`
	Store       StoreConfig       `toml:"store"`
	MQTT        MQTTConfig        `toml:"mqtt"`
	Web         WebConfig         `toml:"web"`
	Display     DisplayConfig     `toml:"display"`
}

type SerialConfig struct {
	Port          string `toml:"port"` // empty: probe all ports
	BaudRate      int    `toml:"baud_rate"`
	Driver        string `toml:"driver"` // "bugst" or "termios"
	ProbeWindowMS int    `toml:"probe_window_ms"`
	StatusLines   int    `toml:"status_lines"` // lines scanned for a `g` reply
}

type CameraConfig struct {
	Device  int     `toml:"device"`
	Width   int     `toml:"width"` // video file frame size
	Height  int     `toml:"height"`
	FPS     float64 `toml:"fps"`
	Codec   string  `toml:"codec"` // FourCC
	Preview bool    `toml:"preview"`
	Window  string  `toml:"window"`
}

type ChartConfig struct {
	MaxPoints int    `toml:"max_points"`
	Title     string `toml:"title"`
}

type OverlayConfig struct {
	Watermark string `toml:"watermark"` // image path, empty for none
	Text      bool   `toml:"text"`
}

type RecordingConfig struct {
	BaseDir string `toml:"base_dir"`
	Video   bool   `toml:"video"`
}

type CalibrationConfig struct {
	KnownWeight  float64 `toml:"known_weight"`
	Dir          string  `toml:"dir"`
	ReadAttempts int     `toml:"read_attempts"`
}

type StoreConfig struct {
	Path string `toml:"path"` // empty disables the index
}

type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
}

type WebConfig struct {
	Addr string `toml:"addr"`
	Port int    `toml:"port"`
}

// DisplayConfig is read by the `display` subcommand only; running it is
// what turns the OLED on.
type DisplayConfig struct {
	I2CBus           string `toml:"i2c_bus"` // empty: first bus
	UpdateIntervalMS int    `toml:"update_interval_ms"`
}

// Default returns a complete configuration for a bench on the first USB
// serial port with the built-in webcam.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate:      115200,
			Driver:        "bugst",
			ProbeWindowMS: 5000,
			StatusLines:   10,
		},
		Camera: CameraConfig{
			Device:  0,
			Width:   1280,
			Height:  720,
			FPS:     30,
			Codec:   "MJPG",
			Preview: true,
			Window:  "Load Cell Bench",
		},
		Chart: ChartConfig{
			MaxPoints: 2000,
			Title:     "Force vs. Time",
		},
		Overlay: OverlayConfig{
			Text: true,
		},
		Recording: RecordingConfig{
			BaseDir: ".",
			Video:   true,
		},
		Calibration: CalibrationConfig{
			KnownWeight:  1,
			Dir:          ".",
			ReadAttempts: 5,
		},
		Store: StoreConfig{
			Path: DefaultDBPath(),
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "loadcell-bench",
			Topic:    "loadcell/sample",
		},
		Web: WebConfig{
			Addr: "",
			Port: 8080,
		},
		Display: DisplayConfig{
			UpdateIntervalMS: 200,
		},
	}
}

// Load overlays the TOML file at path on Default and validates the result.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.validate()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.validate()
		}
		return Config{}, fmt.Errorf("failed to stat config: %w", err)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	switch c.Serial.Driver {
	case "bugst", "termios":
	default:
		return fmt.Errorf("serial.driver must be bugst or termios, got %q", c.Serial.Driver)
	}
	if c.Serial.ProbeWindowMS <= 0 {
		return fmt.Errorf("serial.probe_window_ms must be positive, got %d", c.Serial.ProbeWindowMS)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %v", c.Camera.FPS)
	}
	if len(c.Camera.Codec) != 4 {
		return fmt.Errorf("camera.codec must be a 4-character FourCC, got %q", c.Camera.Codec)
	}
	if c.Chart.MaxPoints < 0 {
		return fmt.Errorf("chart.max_points must be >= 0 (0 = unlimited), got %d", c.Chart.MaxPoints)
	}
	if c.Calibration.KnownWeight == 0 {
		return fmt.Errorf("calibration.known_weight must be non-zero")
	}
	if c.Calibration.ReadAttempts <= 0 {
		return fmt.Errorf("calibration.read_attempts must be positive, got %d", c.Calibration.ReadAttempts)
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 0-65535, got %d", c.Web.Port)
	}
	if c.Display.UpdateIntervalMS <= 0 {
		return fmt.Errorf("display.update_interval_ms must be positive, got %d", c.Display.UpdateIntervalMS)
	}
	return nil
}

// ProbeWindow is Serial.ProbeWindowMS as a duration.
func (c Config) ProbeWindow() time.Duration {
	return time.Duration(c.Serial.ProbeWindowMS) * time.Millisecond
}

// DisplayInterval is Display.UpdateIntervalMS as a duration.
func (c Config) DisplayInterval() time.Duration {
	return time.Duration(c.Display.UpdateIntervalMS) * time.Millisecond
}

// WebListenAddr is the host:port the web server binds.
func (c Config) WebListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Addr, c.Web.Port)
}

// Write encodes c as TOML to path, creating parent directories.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}
