// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/bench"
	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/video"
)

// RunBench is the live bench: serial samples composited over the camera,
// shown in a preview window with r (record), s (save) and q (quit). Without
// a preview the whole run is recorded and saved on exit.
func RunBench(cfg config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	conn, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	stepper, comp, err := newStepper(cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	pub, closePub, err := newPublisher(cfg, "-bench")
	if err != nil {
		return err
	}
	defer closePub()

	cam, err := video.OpenCamera(cfg.Camera.Device)
	if err != nil {
		return err
	}
	log.Printf("bench: camera %d opened", cfg.Camera.Device)

	loop := &bench.Loop{
		Frames:     cam,
		Samples:    conn,
		Stepper:    stepper,
		Recorder:   newRecorder(cfg, conn.Name(), st),
		AutoRecord: !cfg.Camera.Preview,
		State:      bench.NewFrameState(cfg.Chart.MaxPoints),
	}
	if cfg.Camera.Preview {
		loop.Display = video.NewPreview(cfg.Camera.Window)
		log.Printf("bench: press r to start/stop recording, s to save, q to quit")
	}
	if pub != nil {
		loop.Sinks = append(loop.Sinks, pub)
	}
	return loop.Run(ctx)
}

// ReplayOptions selects what drives a replay.
type ReplayOptions struct {
	File   string // data file; empty with Mock for the synthetic curve
	Mock   bool
	Camera bool // composite over the live camera instead of a black frame
	// Duration bounds a mock run, which never ends by itself. Zero means
	// until interrupted.
	Duration time.Duration
}

// RunReplay drives the frame loop from a data file or the mock source. The
// session is always recorded and saved when the source is exhausted.
func RunReplay(cfg config.Config, opts ReplayOptions) error {
	ctx, stop := signalContext()
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	var (
		samples loadcell.SampleSource
		source  string
	)
	switch {
	case opts.File != "":
		fs, err := loadcell.OpenFileSource(opts.File)
		if err != nil {
			return err
		}
		defer fs.Close()
		samples, source = fs, opts.File
	case opts.Mock:
		samples, source = loadcell.NewMockSource(), "mock"
	default:
		return fmt.Errorf("replay needs a data file or --mock")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	stepper, comp, err := newStepper(cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	loop := &bench.Loop{
		Samples:    samples,
		Stepper:    stepper,
		Recorder:   newRecorder(cfg, source, st),
		AutoRecord: true,
		StopAtEOF:  true,
		State:      bench.NewFrameState(cfg.Chart.MaxPoints),
	}
	if opts.Camera {
		cam, err := video.OpenCamera(cfg.Camera.Device)
		if err != nil {
			return err
		}
		loop.Frames = cam
	} else {
		loop.Frames = bench.NewBlankFrames(cfg.Camera.Width, cfg.Camera.Height, color.Black)
		loop.Interval = time.Duration(float64(time.Second) / cfg.Camera.FPS)
	}
	if cfg.Camera.Preview {
		loop.Display = video.NewPreview(cfg.Camera.Window)
	}

	log.Printf("bench: replaying %s", source)
	return loop.Run(ctx)
}
