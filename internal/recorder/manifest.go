// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const manifestName = "session.yaml"

// Manifest is the human-readable summary kept next to the session files.
type Manifest struct {
	ID           string     `yaml:"id"`
	Source       string     `yaml:"source,omitempty"`
	StartedAt    time.Time  `yaml:"started_at"`
	StoppedAt    *time.Time `yaml:"stopped_at,omitempty"`
	Samples      int        `yaml:"samples"`
	TotalImpulse float64    `yaml:"total_impulse"`
	Log          string     `yaml:"log,omitempty"`
	Video        string     `yaml:"video,omitempty"`
}

func writeManifest(s *Session, source string) error {
	m := Manifest{
		ID:           s.ID,
		Source:       source,
		StartedAt:    s.StartedAt,
		Samples:      len(s.lines),
		TotalImpulse: s.total,
		Log:          filepath.Base(s.LogPath),
		Video:        filepath.Base(s.VideoPath),
	}
	if s.LogPath == "" {
		m.Log = ""
	}
	if s.VideoPath == "" {
		m.Video = ""
	}
	if !s.StoppedAt.IsZero() {
		t := s.StoppedAt
		m.StoppedAt = &t
	}

	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(s.Dir, manifestName), raw, 0o644)
}

// ReadManifest loads the manifest of the session in dir.
func ReadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
