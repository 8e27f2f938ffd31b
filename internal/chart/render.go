// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package chart renders the force-vs-time line chart that is blended over
// the camera feed.
package chart

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// ChromaKey fills the chart background. The compositor treats pixels of
// exactly this colour as transparent.
var ChromaKey = color.RGBA{R: 255, G: 0, B: 255, A: 255}

// headroom is the y-axis margin above the largest force in the series.
const headroom = 1.2

// Options controls chart appearance.
type Options struct {
	Title     string
	XLabel    string
	YLabel    string
	LineColor color.RGBA
	LineWidth float64 // points
	Grid      bool
}

// DefaultOptions matches the bench's historical look: purple force line on
// a grid.
func DefaultOptions() Options {
	return Options{
		Title:     "Force vs. Time",
		XLabel:    "Time (s)",
		YLabel:    "Force (N)",
		LineColor: color.RGBA{R: 128, G: 0, B: 128, A: 255},
		LineWidth: 2,
		Grid:      true,
	}
}

// Renderer draws a single force series. It holds no per-call state, so the
// same input always yields the same pixels.
type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render draws samples into an opaque width x height buffer whose
// background is ChromaKey. The y axis spans [0, 1.2*max(force)].
func (r *Renderer) Render(samples []loadcell.Derived, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("chart: invalid size %dx%d", width, height)
	}

	p, err := r.newPlot(samples)
	if err != nil {
		return nil, err
	}

	// 72 dpi makes one point one pixel.
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Points(float64(width)), vg.Points(float64(height))),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(ChromaKey),
	)
	p.Draw(draw.New(c))

	return fitRGBA(c.Image(), width, height), nil
}

// newPlot builds the plot for samples. Non-finite points are skipped; the
// y axis is [0, 1.2*max(force)], or [0, 1] when no force is positive.
func (r *Renderer) newPlot(samples []loadcell.Derived) (*plot.Plot, error) {
	p := plot.New()
	p.BackgroundColor = color.Transparent
	p.Title.Text = r.opts.Title
	p.X.Label.Text = r.opts.XLabel
	p.Y.Label.Text = r.opts.YLabel

	if r.opts.Grid {
		p.Add(plotter.NewGrid())
	}

	pts := make(plotter.XYs, 0, len(samples))
	maxForce := math.Inf(-1)
	for _, s := range samples {
		if !finite(s.Time) || !finite(s.Force) {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Time, Y: s.Force})
		maxForce = math.Max(maxForce, s.Force)
	}

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("chart: building line: %w", err)
		}
		line.LineStyle.Color = r.opts.LineColor
		line.LineStyle.Width = vg.Points(r.opts.LineWidth)
		p.Add(line)
	}

	// Set after Add, which widens the axes to the data range.
	p.Y.Min = 0
	p.Y.Max = 1
	if maxForce > 0 {
		p.Y.Max = maxForce * headroom
	}

	return p, nil
}

// fitRGBA copies src into an exactly width x height RGBA, padding with
// ChromaKey if rounding in the canvas left it short.
func fitRGBA(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	stddraw.Draw(dst, dst.Bounds(), &image.Uniform{C: ChromaKey}, image.Point{}, stddraw.Src)
	stddraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, stddraw.Src)
	return dst
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
