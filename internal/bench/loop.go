// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bench

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/recorder"
)

// Keys understood by the preview window.
const (
	KeyQuit   = 'q'
	KeyRecord = 'r' // start, or stop if already recording
	KeySave   = 's'
)

// FrameSource yields camera frames. video.Camera satisfies it.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}

// Display shows a frame and reports the key pressed (-1 for none).
// video.Preview satisfies it.
type Display interface {
	Show(frame image.Image) (int, error)
	Close() error
}

// Sink receives every accepted sample, e.g. the MQTT publisher.
type Sink interface {
	Publish(d loadcell.Derived)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(d loadcell.Derived)

func (f SinkFunc) Publish(d loadcell.Derived) { f(d) }

// Loop wires sources, the stepper and outputs together. Display and
// Recorder are optional.
type Loop struct {
	Frames   FrameSource
	Samples  loadcell.SampleSource
	Stepper  *Stepper
	Recorder *recorder.Recorder
	Display  Display
	Sinks    []Sink

	// AutoRecord starts a session before the first frame and saves it when
	// the loop ends.
	AutoRecord bool
	// StopAtEOF ends the loop once Samples returns io.EOF (replay). When
	// false the loop keeps showing frames without new samples.
	StopAtEOF bool
	// Interval paces the loop when neither source blocks (replay with
	// blank frames). Zero runs as fast as the sources allow.
	Interval time.Duration

	State FrameState
}

// Run processes frames until ctx is cancelled, the quit key is pressed, the
// camera stops or a structural error occurs. Frames, Display and any open
// video are released on every exit path.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.Frames.Close(); cerr != nil {
			log.Printf("bench: closing frame source: %v", cerr)
		}
		if l.Display != nil {
			if cerr := l.Display.Close(); cerr != nil {
				log.Printf("bench: closing display: %v", cerr)
			}
		}
		l.finish(ctx)
	}()

	if l.AutoRecord {
		if err := l.startRecording(ctx); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	if l.Interval > 0 {
		t := time.NewTicker(l.Interval)
		defer t.Stop()
		tick = t.C
	}

	samplesDone := false
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		frame, err := l.Frames.Read()
		if err != nil {
			return fmt.Errorf("bench: reading frame: %w", err)
		}

		var s loadcell.Sample
		ok := false
		if !samplesDone {
			s, ok, err = l.Samples.ReadSample()
			if errors.Is(err, io.EOF) {
				samplesDone = true
				err = nil
				if l.StopAtEOF {
					log.Printf("bench: sample source exhausted after %d samples", l.State.Acc.Count())
					return nil
				}
			}
			if err != nil {
				return fmt.Errorf("bench: reading sample: %w", err)
			}
		}

		out, next, err := l.Stepper.Step(l.State, frame, s, ok)
		if err != nil {
			return err
		}
		l.State = next

		if ok {
			if l.Recorder != nil {
				l.Recorder.Record(l.State.Last)
			}
			for _, sink := range l.Sinks {
				sink.Publish(l.State.Last)
			}
		}
		if l.Recorder != nil {
			if err := l.Recorder.RecordFrame(out); err != nil {
				log.Printf("bench: %v; continuing without video", err)
			}
		}

		if l.Display == nil {
			continue
		}
		key, err := l.Display.Show(out)
		if err != nil {
			return fmt.Errorf("bench: display: %w", err)
		}
		if quit := l.handleKey(ctx, key); quit {
			return nil
		}
	}
}

func (l *Loop) handleKey(ctx context.Context, key int) (quit bool) {
	switch key {
	case KeyQuit:
		return true
	case KeyRecord:
		if l.Recorder == nil {
			return false
		}
		if l.Recorder.Active() {
			if err := l.Recorder.Stop(ctx); err != nil {
				log.Printf("bench: %v", err)
			}
			return false
		}
		if err := l.startRecording(ctx); err != nil {
			log.Printf("bench: %v", err)
		}
	case KeySave:
		l.save(ctx)
	}
	return false
}

// startRecording opens a new session and resets the accumulator and chart
// so the session's cumulative impulse starts at zero.
func (l *Loop) startRecording(ctx context.Context) error {
	if l.Recorder == nil {
		return nil
	}
	if _, err := l.Recorder.Start(ctx); err != nil {
		return err
	}
	l.State = l.State.Reset()
	return nil
}

func (l *Loop) save(ctx context.Context) {
	if l.Recorder == nil {
		return
	}
	path, err := l.Recorder.Save(ctx)
	switch {
	case errors.Is(err, recorder.ErrEmptyData):
		log.Printf("bench: nothing recorded yet, not saving")
	case err != nil:
		log.Printf("bench: save failed: %v", err)
	default:
		log.Printf("bench: data saved to %s", path)
	}
}

func (l *Loop) finish(ctx context.Context) {
	if l.Recorder == nil {
		return
	}
	// The session still has to be finalized after a cancel.
	ctx = context.WithoutCancel(ctx)
	wasActive := l.Recorder.Active()
	if err := l.Recorder.Stop(ctx); err != nil {
		log.Printf("bench: %v", err)
	}
	if l.AutoRecord && wasActive {
		l.save(ctx)
	}
}
