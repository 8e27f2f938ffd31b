// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteResult stores res as calibration_<unix>.json under dir and returns
// the file path.
func WriteResult(dir string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("calibration: %w", err)
	}
	name := fmt.Sprintf("calibration_%d.json", res.Timestamp.Unix())
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("calibration: marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("calibration: write result: %w", err)
	}
	return path, nil
}

// ReadResult loads a file written by WriteResult.
func ReadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("calibration: parse %s: %w", path, err)
	}
	return res, nil
}
