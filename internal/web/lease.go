// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// Link is the serial connection as the web server uses it.
// *serialport.Conn satisfies it.
type Link interface {
	ReadSample() (loadcell.Sample, bool, error)
	SendCommand(cmd string, awaitReply bool) (string, error)
	Status(maxLines int) (float64, error)
}

// Lease lends the link to one user at a time: the sample stream takes it
// per read, calibration and the serial console for their whole exchange.
type Lease struct {
	mu   sync.Mutex
	link Link
}

func NewLease(link Link) *Lease {
	return &Lease{link: link}
}

func (l *Lease) ReadSample() (loadcell.Sample, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.link.ReadSample()
}

// Do runs fn with exclusive use of the link.
func (l *Lease) Do(fn func(Link) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.link)
}

// Stream derives polled samples against one running cumulative impulse.
type Stream struct {
	mu  sync.Mutex
	acc loadcell.Accumulator
}

// Reset zeroes the running cumulative impulse.
func (s *Stream) Reset() {
	s.mu.Lock()
	s.acc.Reset()
	s.mu.Unlock()
}

// Run polls src until ctx is done, src is exhausted or src fails, and hands
// every derived sample to each sink.
func (s *Stream) Run(ctx context.Context, src loadcell.SampleSource, sinks ...func(loadcell.Derived)) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		sample, ok, err := src.ReadSample()
		if errors.Is(err, io.EOF) {
			log.Printf("web: sample source exhausted")
			return nil
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.mu.Lock()
		d := s.acc.Add(sample)
		s.mu.Unlock()
		for _, sink := range sinks {
			sink(d)
		}
	}
}

// Paced wraps a source so that each poll takes at least interval. Replay
// and mock sources return immediately and would otherwise spin.
func Paced(src loadcell.SampleSource, interval time.Duration) loadcell.SampleSource {
	return &pacedSource{src: src, interval: interval}
}

type pacedSource struct {
	src      loadcell.SampleSource
	interval time.Duration
	next     time.Time
}

func (p *pacedSource) ReadSample() (loadcell.Sample, bool, error) {
	if wait := time.Until(p.next); wait > 0 {
		time.Sleep(wait)
	}
	p.next = time.Now().Add(p.interval)
	return p.src.ReadSample()
}
