// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// fakeDevice replays readings; ok=false stands for a timeout.
type fakeDevice struct {
	readings []reading
	sent     []string
	ack      string
	sendErr  error
}

type reading struct {
	force float64
	ok    bool
}

func (d *fakeDevice) ReadSample() (loadcell.Sample, bool, error) {
	if len(d.readings) == 0 {
		return loadcell.Sample{}, false, nil
	}
	r := d.readings[0]
	d.readings = d.readings[1:]
	return loadcell.Sample{Seq: 1, Force: r.force}, r.ok, nil
}

func (d *fakeDevice) SendCommand(cmd string, awaitReply bool) (string, error) {
	d.sent = append(d.sent, cmd)
	if d.sendErr != nil {
		return "", d.sendErr
	}
	return d.ack, nil
}

// scriptedPrompter answers in order and records the states it was asked in.
type scriptedPrompter struct {
	answers []bool
	states  []State
}

func (p *scriptedPrompter) Confirm(_ context.Context, step State, _ string) (bool, error) {
	p.states = append(p.states, step)
	if len(p.answers) == 0 {
		return true, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestComputeFactor(t *testing.T) {
	f, err := ComputeFactor(100, 600, 5)
	if err != nil || f != 100 {
		t.Fatalf("ComputeFactor(100, 600, 5) = %v, %v; want 100", f, err)
	}
	if _, err := ComputeFactor(100, 600, 0); !errors.Is(err, ErrDivision) {
		t.Fatalf("expected ErrDivision, got %v", err)
	}
}

func TestRunSendsFactor(t *testing.T) {
	dev := &fakeDevice{
		readings: []reading{{force: 100, ok: true}, {ok: false}, {force: 600, ok: true}},
		ack:      "<3,100>",
	}
	p := &scriptedPrompter{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewController(dev, p, Options{Port: "/dev/ttyUSB0", Now: func() time.Time { return now }})

	res, err := c.Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Factor != 100 || res.NoLoad != 100 || res.KnownLoad != 600 || res.Ack != "<3,100>" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(dev.sent) != 1 || dev.sent[0] != "s100\n" {
		t.Fatalf("unexpected commands: %q", dev.sent)
	}
	if len(p.states) != 2 || p.states[0] != AwaitingNoLoad || p.states[1] != AwaitingKnownLoad {
		t.Fatalf("unexpected prompt states: %v", p.states)
	}
	if c.State() != Idle {
		t.Fatalf("expected Idle after run, got %s", c.State())
	}
}

func TestRunZeroWeight(t *testing.T) {
	dev := &fakeDevice{readings: []reading{{force: 1, ok: true}, {force: 2, ok: true}}}
	p := &scriptedPrompter{}
	c := NewController(dev, p, Options{})

	if _, err := c.Run(context.Background(), 0); !errors.Is(err, ErrDivision) {
		t.Fatalf("expected ErrDivision, got %v", err)
	}
	if len(dev.sent) != 0 {
		t.Fatalf("nothing should be sent, got %q", dev.sent)
	}
}

func TestRunCancelHasNoSideEffects(t *testing.T) {
	for i, answers := range [][]bool{{false}, {true, false}} {
		dev := &fakeDevice{readings: []reading{{force: 100, ok: true}, {force: 600, ok: true}}}
		c := NewController(dev, &scriptedPrompter{answers: answers}, Options{})

		_, err := c.Run(context.Background(), 5)
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("case %d: expected ErrCancelled, got %v", i, err)
		}
		if len(dev.sent) != 0 {
			t.Fatalf("case %d: nothing should be sent, got %q", i, dev.sent)
		}
		if c.State() != Idle {
			t.Fatalf("case %d: expected Idle, got %s", i, c.State())
		}
	}
}

func TestRunGivesUpWithoutReading(t *testing.T) {
	dev := &fakeDevice{}
	c := NewController(dev, &scriptedPrompter{}, Options{ReadAttempts: 3})
	if _, err := c.Run(context.Background(), 5); !errors.Is(err, ErrNoReading) {
		t.Fatalf("expected ErrNoReading, got %v", err)
	}
	if len(dev.sent) != 0 {
		t.Fatalf("nothing should be sent, got %q", dev.sent)
	}
}

func TestRunSendError(t *testing.T) {
	boom := errors.New("link down")
	dev := &fakeDevice{readings: []reading{{force: 1, ok: true}, {force: 3, ok: true}}, sendErr: boom}
	c := NewController(dev, &scriptedPrompter{}, Options{})
	if _, err := c.Run(context.Background(), 2); !errors.Is(err, boom) {
		t.Fatalf("expected send error, got %v", err)
	}
	if c.State() != Idle {
		t.Fatalf("expected Idle, got %s", c.State())
	}
}

func TestWriteResultRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cal")
	res := Result{Version: 1, Timestamp: time.Unix(1700000000, 0).UTC(), NoLoad: 100, KnownLoad: 600, KnownWeight: 5, Factor: 100}

	path, err := WriteResult(dir, res)
	if err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if filepath.Base(path) != "calibration_1700000000.json" {
		t.Fatalf("unexpected file name %s", path)
	}
	got, err := ReadResult(path)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if got.Factor != 100 || !got.Timestamp.Equal(res.Timestamp) {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestConsolePrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewConsolePrompter(strings.NewReader("\nq\n"), &out)
	ctx := context.Background()

	ok, err := p.Confirm(ctx, AwaitingNoLoad, "Remove load")
	if err != nil || !ok {
		t.Fatalf("expected continue, got ok=%v err=%v", ok, err)
	}
	ok, err = p.Confirm(ctx, AwaitingKnownLoad, "Add load")
	if err != nil || ok {
		t.Fatalf("expected cancel, got ok=%v err=%v", ok, err)
	}
	ok, err = p.Confirm(ctx, AwaitingKnownLoad, "Add load")
	if err != nil || ok {
		t.Fatalf("expected cancel at end of input, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(out.String(), "Remove load") {
		t.Fatalf("prompt not written: %q", out.String())
	}
}
