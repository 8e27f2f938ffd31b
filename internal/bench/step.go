// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bench is the frame loop: one camera frame and at most one sample
// in, one composited frame out.
package bench

import (
	"fmt"
	"image"

	"github.com/relabs-tech/loadcell_bench/internal/chart"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/overlay"
)

// FrameState is everything the frame loop carries between frames. Step
// takes it by value and returns the successor; the History it points to is
// shared, so a state must not be reused after it has been stepped.
type FrameState struct {
	Acc     loadcell.Accumulator
	History *chart.History
	Last    loadcell.Derived
	HasLast bool
	Frames  int

	chart *image.RGBA // last render, nil when stale
}

func NewFrameState(maxPoints int) FrameState {
	return FrameState{History: chart.NewHistory(maxPoints)}
}

// Reset starts a new session: accumulator at zero and an empty chart.
func (s FrameState) Reset() FrameState {
	s.Acc.Reset()
	s.History.Reset()
	s.Last = loadcell.Derived{}
	s.HasLast = false
	s.chart = nil
	return s
}

// Stepper holds the render resources used by Step.
type Stepper struct {
	renderer  *chart.Renderer
	comp      *overlay.Compositor
	watermark *overlay.Watermark // may be nil
	text      bool
}

func NewStepper(r *chart.Renderer, c *overlay.Compositor, wm *overlay.Watermark, text bool) *Stepper {
	return &Stepper{renderer: r, comp: c, watermark: wm, text: text}
}

// Step folds an optional sample into st and composites frame. The chart is
// re-rendered only when a sample arrived or the frame size changed.
func (sp *Stepper) Step(st FrameState, frame image.Image, s loadcell.Sample, ok bool) (*image.RGBA, FrameState, error) {
	st.Frames++
	if ok {
		d := st.Acc.Add(s)
		st.History.Push(d)
		st.Last = d
		st.HasLast = true
		st.chart = nil
	}

	size := frame.Bounds().Size()
	if st.History.Len() > 0 && (st.chart == nil || st.chart.Bounds().Size() != size) {
		img, err := sp.renderer.Render(st.History.Points(), size.X, size.Y)
		if err != nil {
			return nil, st, fmt.Errorf("bench: render chart: %w", err)
		}
		st.chart = img
	}

	var texts []overlay.Readout
	if sp.text && st.HasLast {
		texts = overlay.Readouts(st.Last)
	}

	var chartImg image.Image
	if st.chart != nil {
		chartImg = st.chart
	}
	out, err := sp.comp.Composite(frame, chartImg, sp.watermark, texts)
	if err != nil {
		return nil, st, err
	}
	return out, st, nil
}
