// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package overlay

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// Readout is one label/value pair burned into the frame.
type Readout struct {
	Label string
	Value string
}

// Readouts formats the live values of d in display order.
func Readouts(d loadcell.Derived) []Readout {
	return []Readout{
		{Label: "Time", Value: fmt.Sprintf("%.2f s", d.Time)},
		{Label: "Force", Value: fmt.Sprintf("%.2f N", d.Force)},
		{Label: "Impulse", Value: fmt.Sprintf("%.2f N.s", d.Impulse)},
		{Label: "Total Impulse", Value: fmt.Sprintf("%.2f N.s", d.CumulativeImpulse)},
	}
}

func newFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
