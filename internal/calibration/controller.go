// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration runs the two-point (no-load / known-load) scale
// calibration against the load-cell firmware.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

var (
	ErrDivision  = errors.New("calibration: known weight must be non-zero")
	ErrCancelled = errors.New("calibration: cancelled")
	ErrNoReading = errors.New("calibration: no reading from device")
)

// DefaultReadAttempts bounds how many empty polls are tolerated per reading.
// With the serial read timeout of 1 s this is roughly five seconds.
const DefaultReadAttempts = 5

type State int

const (
	Idle State = iota
	AwaitingNoLoad
	AwaitingKnownLoad
	Computed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingNoLoad:
		return "awaiting_no_load"
	case AwaitingKnownLoad:
		return "awaiting_known_load"
	case Computed:
		return "computed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Device is the slice of the serial connection calibration needs.
// *serialport.Conn satisfies it.
type Device interface {
	ReadSample() (loadcell.Sample, bool, error)
	SendCommand(cmd string, awaitReply bool) (string, error)
}

// Prompter asks the operator to confirm a step. Returning false cancels
// the calibration.
type Prompter interface {
	Confirm(ctx context.Context, step State, msg string) (bool, error)
}

// Result is one completed calibration.
type Result struct {
	Version     int       `json:"version"`
	Port        string    `json:"port,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	NoLoad      float64   `json:"no_load_reading"`
	KnownLoad   float64   `json:"known_load_reading"`
	KnownWeight float64   `json:"known_weight"`
	Factor      float64   `json:"conversion_factor"`
	Ack         string    `json:"device_ack,omitempty"`
}

type Options struct {
	Port         string
	ReadAttempts int
	Now          func() time.Time
}

// Controller drives Idle -> AwaitingNoLoad -> AwaitingKnownLoad ->
// Computed -> Idle. It holds the device only for the duration of Run.
type Controller struct {
	dev    Device
	prompt Prompter
	opts   Options
	state  State
}

func NewController(dev Device, prompt Prompter, opts Options) *Controller {
	if opts.ReadAttempts <= 0 {
		opts.ReadAttempts = DefaultReadAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{dev: dev, prompt: prompt, opts: opts}
}

func (c *Controller) State() State { return c.state }

// ComputeFactor returns (knownLoad - noLoad) / knownWeight.
func ComputeFactor(noLoad, knownLoad, knownWeight float64) (float64, error) {
	if knownWeight == 0 {
		return 0, ErrDivision
	}
	return (knownLoad - noLoad) / knownWeight, nil
}

// Run performs one calibration. Nothing is sent to the device unless both
// readings were taken and the factor computed; on any error or
// cancellation the controller is back in Idle.
func (c *Controller) Run(ctx context.Context, knownWeight float64) (Result, error) {
	defer func() { c.state = Idle }()

	if knownWeight == 0 {
		return Result{}, ErrDivision
	}

	c.state = AwaitingNoLoad
	if err := c.confirm(ctx, "Remove all load from the cell, then continue."); err != nil {
		return Result{}, err
	}
	noLoad, err := c.reading(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("no-load reading: %w", err)
	}
	log.Printf("calibration: no-load reading %v", noLoad)

	c.state = AwaitingKnownLoad
	if err := c.confirm(ctx, fmt.Sprintf("Place the known load (%v) on the cell, then continue.", knownWeight)); err != nil {
		return Result{}, err
	}
	knownLoad, err := c.reading(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("known-load reading: %w", err)
	}
	log.Printf("calibration: known-load reading %v", knownLoad)

	factor, err := ComputeFactor(noLoad, knownLoad, knownWeight)
	if err != nil {
		return Result{}, err
	}
	c.state = Computed
	log.Printf("calibration: new conversion factor %v", factor)

	ack, err := c.dev.SendCommand(loadcell.SetFactorCommand(factor), true)
	if err != nil {
		return Result{}, fmt.Errorf("calibration: sending factor: %w", err)
	}
	if ack == "" {
		log.Printf("calibration: device did not acknowledge factor %v", factor)
	}

	return Result{
		Version:     1,
		Port:        c.opts.Port,
		Timestamp:   c.opts.Now(),
		NoLoad:      noLoad,
		KnownLoad:   knownLoad,
		KnownWeight: knownWeight,
		Factor:      factor,
		Ack:         ack,
	}, nil
}

func (c *Controller) confirm(ctx context.Context, msg string) error {
	ok, err := c.prompt.Confirm(ctx, c.state, msg)
	if err != nil {
		return fmt.Errorf("calibration: prompt: %w", err)
	}
	if !ok {
		log.Printf("calibration: cancelled by operator at %s", c.state)
		return ErrCancelled
	}
	return nil
}

// reading returns the force of the first valid frame, polling up to
// ReadAttempts times.
func (c *Controller) reading(ctx context.Context) (float64, error) {
	for i := 0; i < c.opts.ReadAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s, ok, err := c.dev.ReadSample()
		if err != nil {
			return 0, err
		}
		if ok {
			return s.Force, nil
		}
	}
	return 0, ErrNoReading
}
