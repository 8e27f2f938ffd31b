// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a sample source that produces a repeating
// motor-burn shaped force curve, for running the bench without hardware.
func NewMockSource() SampleSource {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) ReadSample() (Sample, bool, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	// 4 s burn: fast rise, plateau with ripple, tail-off, then 2 s idle.
	phase := math.Mod(elapsed, 6)
	var force float64
	switch {
	case phase < 0.3:
		force = 120 * phase / 0.3
	case phase < 3.0:
		force = 90 + 6*math.Sin(phase*11)
	case phase < 4.0:
		force = 90 * (4.0 - phase)
	}

	// The firmware tags every data frame with 1.
	return Sample{Seq: 1, Time: elapsed, Force: force}, true, nil
}
