// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package overlay

import (
	"errors"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Watermark scale relative to the source image.
const (
	WatermarkWidthScale  = 0.20
	WatermarkHeightScale = 0.25
)

// Watermark is a decoded logo, scaled once and reused for every frame.
type Watermark struct {
	img   *image.NRGBA
	alpha bool
}

// LoadWatermark decodes png, jpeg, gif, bmp, tiff or webp from path.
func LoadWatermark(path string) (*Watermark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: open watermark: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("overlay: decode watermark %s: %w", path, err)
	}
	wm, err := NewWatermark(src)
	if err != nil {
		return nil, fmt.Errorf("overlay: watermark %s (%s): %w", path, format, err)
	}
	return wm, nil
}

// NewWatermark scales src to 20% of its width and 25% of its height
// (truncated). Sources that report themselves opaque are later copied over
// the frame; all others are alpha blended.
func NewWatermark(src image.Image) (*Watermark, error) {
	sb := src.Bounds()
	w := int(float64(sb.Dx()) * WatermarkWidthScale)
	h := int(float64(sb.Dy()) * WatermarkHeightScale)
	if w <= 0 || h <= 0 {
		return nil, errors.New("source too small to scale")
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)

	alpha := true
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		alpha = false
	}
	return &Watermark{img: dst, alpha: alpha}, nil
}

func (w *Watermark) Image() image.Image { return w.img }

func (w *Watermark) Bounds() image.Rectangle { return w.img.Bounds() }

func (w *Watermark) HasAlpha() bool { return w.alpha }
