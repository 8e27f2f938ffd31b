// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

import (
	"math"
	"testing"
)

func TestDeriveScenario(t *testing.T) {
	s, ok := ParseLine("<5,1.0,2.5,0.0>")
	if !ok {
		t.Fatalf("expected frame to parse")
	}
	d := Derive(s, 0)
	if d.Impulse != 2.5 || d.CumulativeImpulse != 2.5 {
		t.Fatalf("unexpected derived sample: %+v", d)
	}
}

func TestAccumulatorSumsProducts(t *testing.T) {
	samples := []Sample{
		{Time: 0.1, Force: 10},
		{Time: 0.2, Force: 12},
		{Time: 0.3, Force: -4},
		{Time: 0.25, Force: 8}, // non-monotonic time passes through
	}

	var acc Accumulator
	want := 0.0
	for i, s := range samples {
		d := acc.Add(s)
		want += s.Force * s.Time
		if math.Abs(d.CumulativeImpulse-want) > 1e-12 {
			t.Fatalf("sample %d: cumulative %v, want %v", i, d.CumulativeImpulse, want)
		}
	}
	if acc.Count() != len(samples) {
		t.Fatalf("expected count %d, got %d", len(samples), acc.Count())
	}

	acc.Reset()
	if acc.Total() != 0 || acc.Count() != 0 {
		t.Fatalf("expected reset accumulator, got total=%v count=%d", acc.Total(), acc.Count())
	}
	d := acc.Add(Sample{Time: 2, Force: 3})
	if d.CumulativeImpulse != 6 {
		t.Fatalf("expected fresh session to start at zero, got %v", d.CumulativeImpulse)
	}
}
