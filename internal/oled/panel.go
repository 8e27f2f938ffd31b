// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package oled drives the 128x64 SSD1306 readout mounted on the bench.
package oled

import (
	"fmt"
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

const (
	Width  = 128
	Height = 64
)

// Panel is an initialized display on an open I2C bus.
type Panel struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// Open initializes periph, opens the named I2C bus ("" for the first one)
// and the display on it.
func Open(busName string) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("oled: failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("oled: failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("oled: failed to initialize display: %w", err)
	}
	log.Printf("oled: display initialized on bus %q", bus.String())
	return &Panel{bus: bus, dev: dev}, nil
}

// Show draws the readout for d, or a waiting screen when have is false.
func (p *Panel) Show(d loadcell.Derived, have bool) error {
	img := Readout(d, have)
	return p.dev.Draw(p.dev.Bounds(), img, image.Point{})
}

// Splash shows the start-up screen.
func (p *Panel) Splash() error {
	img := newFrame()
	drawLines(img, []line{
		{x: 15, y: 26, text: "Load Cell"},
		{x: 30, y: 43, text: "Bench"},
	})
	return p.dev.Draw(p.dev.Bounds(), img, image.Point{})
}

func (p *Panel) Close() error {
	if err := p.dev.Halt(); err != nil {
		log.Printf("oled: halt: %v", err)
	}
	return p.bus.Close()
}

// Readout renders the force, impulse and total impulse screen.
func Readout(d loadcell.Derived, have bool) *image1bit.VerticalLSB {
	img := newFrame()
	if !have {
		drawLines(img, []line{
			{x: 0, y: 26, text: "Load cell"},
			{x: 0, y: 39, text: "Waiting..."},
		})
		return img
	}
	drawLines(img, []line{
		{x: 0, y: 13, text: fmt.Sprintf("t: %8.2f s", d.Time)},
		{x: 0, y: 26, text: fmt.Sprintf("F: %8.2f N", d.Force)},
		{x: 0, y: 39, text: fmt.Sprintf("I: %8.2f Ns", d.Impulse)},
		{x: 0, y: 52, text: fmt.Sprintf("T: %8.2f Ns", d.CumulativeImpulse)},
	})
	return img
}

type line struct {
	x, y int
	text string
}

func newFrame() *image1bit.VerticalLSB {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
}

func drawLines(img *image1bit.VerticalLSB, lines []line) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(l.x, l.y)
		drawer.DrawString(l.text)
	}
}
