// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

// Derive computes impulse and cumulative impulse for one sample.
//
// Impulse is the literal product force*time, not an integral over dt.
// Nothing is filtered or rejected: negative or non-monotonic values flow
// straight into the running sum.
func Derive(s Sample, priorCumulative float64) Derived {
	impulse := s.Force * s.Time
	return Derived{
		Sample:            s,
		Impulse:           impulse,
		CumulativeImpulse: priorCumulative + impulse,
	}
}

// Accumulator carries the running cumulative impulse of one session.
// The zero value is a freshly reset accumulator.
type Accumulator struct {
	total float64
	count int
}

// Add derives s against the running total and advances it.
func (a *Accumulator) Add(s Sample) Derived {
	d := Derive(s, a.total)
	a.total = d.CumulativeImpulse
	a.count++
	return d
}

// Reset starts a new session at zero.
func (a *Accumulator) Reset() {
	a.total = 0
	a.count = 0
}

func (a *Accumulator) Total() float64 { return a.total }

func (a *Accumulator) Count() int { return a.count }
