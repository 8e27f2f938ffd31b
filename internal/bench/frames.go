// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bench

import (
	"image"
	"image/color"
	"image/draw"
)

// BlankFrames is a FrameSource of solid frames, used to replay data files
// without a camera.
type BlankFrames struct {
	frame *image.RGBA
}

func NewBlankFrames(width, height int, c color.Color) *BlankFrames {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return &BlankFrames{frame: img}
}

// Read returns the same frame every time; Composite never modifies it.
func (b *BlankFrames) Read() (image.Image, error) { return b.frame, nil }

func (b *BlankFrames) Close() error { return nil }
