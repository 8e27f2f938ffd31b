// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

// Sample represents a single load-cell measurement as sent by the bench
// firmware: `<seq,time,force[,pressure]>`.
type Sample struct {
	Seq      float64 `json:"seq"`
	Time     float64 `json:"time_s"`  // seconds since device boot
	Force    float64 `json:"force_n"` // newtons (after the device scale factor)
	Pressure float64 `json:"pressure,omitempty"`

	HasPressure bool `json:"has_pressure"`
}

// Derived is a Sample plus the quantities computed by the pipeline.
type Derived struct {
	Sample

	Impulse           float64 `json:"impulse"`
	CumulativeImpulse float64 `json:"cumulative_impulse"`
}

// SampleSource is anything that can be polled for samples.
// ok=false means "nothing this tick" (timeout, empty or malformed line);
// a non-nil error is structural and ends the stream.
type SampleSource interface {
	ReadSample() (s Sample, ok bool, err error)
}
