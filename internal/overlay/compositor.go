// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package overlay composites the force chart, a team watermark and the live
// readouts onto camera frames.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Blend weights for the chart overlay. They are fixed, not configurable.
const (
	FrameWeight = 0.7
	ChartWeight = 0.3
)

// WatermarkMargin is the gap in pixels between the watermark and the
// bottom-right corner of the frame.
const WatermarkMargin = 3

// ErrWatermarkBounds is returned when the placed watermark would fall
// outside the frame.
var ErrWatermarkBounds = errors.New("overlay: watermark does not fit in frame")

// Options configures a Compositor.
type Options struct {
	ChromaKey color.RGBA
	TextColor color.RGBA

	LabelSize float64 // points at 72 dpi
	ValueSize float64

	// Origin is the baseline of the first label. Each further readout is
	// Spacing pixels lower and its value sits ValueOffset below its label.
	Origin      image.Point
	Spacing     int
	ValueOffset int
}

// DefaultOptions places four readouts down the left edge in white.
func DefaultOptions(key color.RGBA) Options {
	return Options{
		ChromaKey:   key,
		TextColor:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
		LabelSize:   16,
		ValueSize:   21,
		Origin:      image.Pt(10, 30),
		Spacing:     50,
		ValueOffset: 20,
	}
}

// Compositor owns the font faces used to burn text. It is not safe for
// concurrent use; the frame loop is its only caller.
type Compositor struct {
	opts       Options
	labelFace  font.Face
	valueFace  font.Face
	textSource image.Image
}

func NewCompositor(opts Options) (*Compositor, error) {
	labelFace, err := newFace(opts.LabelSize)
	if err != nil {
		return nil, fmt.Errorf("overlay: label font: %w", err)
	}
	valueFace, err := newFace(opts.ValueSize)
	if err != nil {
		labelFace.Close()
		return nil, fmt.Errorf("overlay: value font: %w", err)
	}
	return &Compositor{
		opts:       opts,
		labelFace:  labelFace,
		valueFace:  valueFace,
		textSource: image.NewUniform(opts.TextColor),
	}, nil
}

func (c *Compositor) Close() error {
	err := c.labelFace.Close()
	if err2 := c.valueFace.Close(); err == nil {
		err = err2
	}
	return err
}

// Composite returns a new frame the size of frame with, in order, the chart
// blended in, the watermark placed bottom-right and the readouts drawn.
// chart and wm may be nil. frame is not modified.
func (c *Compositor) Composite(frame image.Image, chart image.Image, wm *Watermark, texts []Readout) (*image.RGBA, error) {
	fb := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, fb.Dx(), fb.Dy()))
	draw.Draw(out, out.Bounds(), frame, fb.Min, draw.Src)

	if chart != nil {
		c.blendChart(out, fitChart(chart, out.Bounds()))
	}

	if wm != nil {
		if err := placeWatermark(out, wm); err != nil {
			return nil, err
		}
	}

	c.drawReadouts(out, texts)
	return out, nil
}

// fitChart returns chart as an RGBA the size of r. Nearest-neighbour
// scaling keeps key pixels exactly equal to the key.
func fitChart(chart image.Image, r image.Rectangle) *image.RGBA {
	if rgba, ok := chart.(*image.RGBA); ok && rgba.Bounds() == r {
		return rgba
	}
	dst := image.NewRGBA(r)
	xdraw.NearestNeighbor.Scale(dst, r, chart, chart.Bounds(), xdraw.Src, nil)
	return dst
}

// blendChart mixes non-key chart pixels into out; key pixels leave the
// camera untouched.
func (c *Compositor) blendChart(out, chart *image.RGBA) {
	key := c.opts.ChromaKey
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	for y := 0; y < h; y++ {
		po := y * out.Stride
		pc := y * chart.Stride
		for x := 0; x < w; x++ {
			cp := chart.Pix[pc : pc+4 : pc+4]
			if cp[0] == key.R && cp[1] == key.G && cp[2] == key.B {
				po += 4
				pc += 4
				continue
			}
			op := out.Pix[po : po+4 : po+4]
			op[0] = mix(op[0], cp[0])
			op[1] = mix(op[1], cp[1])
			op[2] = mix(op[2], cp[2])
			op[3] = 0xff
			po += 4
			pc += 4
		}
	}
}

func mix(frame, chart uint8) uint8 {
	v := math.Round(FrameWeight*float64(frame) + ChartWeight*float64(chart))
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

// WatermarkRect is where wm lands in a frame of the given bounds.
func WatermarkRect(frame image.Rectangle, wm *Watermark) image.Rectangle {
	size := wm.Bounds().Size()
	x := frame.Max.X - size.X - WatermarkMargin
	y := frame.Max.Y - size.Y - WatermarkMargin
	return image.Rect(x, y, x+size.X, y+size.Y)
}

func placeWatermark(out *image.RGBA, wm *Watermark) error {
	r := WatermarkRect(out.Bounds(), wm)
	if !r.In(out.Bounds()) {
		return fmt.Errorf("%w: %v in %v", ErrWatermarkBounds, r, out.Bounds())
	}
	op := draw.Src
	if wm.HasAlpha() {
		op = draw.Over
	}
	draw.Draw(out, r, wm.Image(), image.Point{}, op)
	return nil
}

func (c *Compositor) drawReadouts(out *image.RGBA, texts []Readout) {
	d := font.Drawer{Dst: out, Src: c.textSource}
	for i, t := range texts {
		y := c.opts.Origin.Y + i*c.opts.Spacing

		d.Face = c.labelFace
		d.Dot = fixed.P(c.opts.Origin.X, y)
		d.DrawString(t.Label)

		d.Face = c.valueFace
		d.Dot = fixed.P(c.opts.Origin.X, y+c.opts.ValueOffset)
		d.DrawString(t.Value)
	}
}
