// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// fakePort serves scripted chunks, one per Read; an empty chunk stands in
// for a read timeout.
type fakePort struct {
	chunks  []string
	written bytes.Buffer
	readErr error
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, io.EOF
	}
	c := p.chunks[0]
	p.chunks = p.chunks[1:]
	return copy(b, c), nil
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestReadSampleAcrossChunks(t *testing.T) {
	port := &fakePort{chunks: []string{"<1,0.5", "", "00,3.25>\r\n<1,0.6,4>\n"}}
	c := NewConn("fake", port)

	// First poll times out with half a frame buffered.
	if _, ok, err := c.ReadSample(); ok || err != nil {
		t.Fatalf("expected timeout, got ok=%v err=%v", ok, err)
	}
	s, ok, err := c.ReadSample()
	if err != nil || !ok {
		t.Fatalf("expected sample, got ok=%v err=%v", ok, err)
	}
	if s.Time != 0.5 || s.Force != 3.25 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	s, ok, err = c.ReadSample()
	if err != nil || !ok || s.Force != 4 {
		t.Fatalf("unexpected second sample: %+v ok=%v err=%v", s, ok, err)
	}
}

func TestReadSampleSkipsMalformed(t *testing.T) {
	c := NewConn("fake", &fakePort{chunks: []string{"garbage\n", "\n"}})
	for i := 0; i < 2; i++ {
		if _, ok, err := c.ReadSample(); ok || err != nil {
			t.Fatalf("line %d: expected skip, got ok=%v err=%v", i, ok, err)
		}
	}
}

func TestReadErrorIsConnectionError(t *testing.T) {
	c := NewConn("fake", &fakePort{readErr: errors.New("device unplugged")})
	_, _, err := c.ReadSample()
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Op != "read" {
		t.Fatalf("expected read ConnectionError, got %v", err)
	}
}

func TestSendCommandAwaitsReply(t *testing.T) {
	port := &fakePort{chunks: []string{"<1,2.0,100.5>\n"}}
	c := NewConn("fake", port)
	reply, err := c.SendCommand("s100\n", true)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if port.written.String() != "s100\n" {
		t.Fatalf("unexpected bytes written: %q", port.written.String())
	}
	if reply != "<1,2.0,100.5>" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestStatusScansPastDataFrames(t *testing.T) {
	port := &fakePort{chunks: []string{"<1,2.0,1.0>\n", "<1,2.1,1.0>\n<2,-21.00000>\n"}}
	c := NewConn("fake", port)
	scale, err := c.Status(5)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if scale != -21 {
		t.Fatalf("expected -21, got %v", scale)
	}
	if port.written.String() != "g\n" {
		t.Fatalf("expected status command, got %q", port.written.String())
	}
}

func TestStatusNoReply(t *testing.T) {
	c := NewConn("fake", &fakePort{chunks: []string{"<1,2.0,1.0>\n"}})
	if _, err := c.Status(3); !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(Options{Port: "/dev/null", BaudRate: 115200, Driver: "carrier-pigeon"})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestProbeReturnsFirstTransmittingPort(t *testing.T) {
	ports := map[string]*fakePort{
		"/dev/ttyS0":   {},
		"/dev/ttyUSB0": {chunks: []string{"<1,0.1,0.0>\n"}},
	}
	dial := func(name string) (*Conn, error) {
		p, ok := ports[name]
		if !ok {
			return nil, &ConnectionError{Port: name, Op: "open", Err: errors.New("no such port")}
		}
		return NewConn(name, p), nil
	}

	got, err := Probe(context.Background(), dial, []string{"/dev/missing", "/dev/ttyS0", "/dev/ttyUSB0"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if got != "/dev/ttyUSB0" {
		t.Fatalf("expected /dev/ttyUSB0, got %s", got)
	}
	for name, p := range ports {
		if !p.closed {
			t.Errorf("expected %s to be closed after probing", name)
		}
	}
}

func TestProbeNoActivePort(t *testing.T) {
	dial := func(name string) (*Conn, error) { return NewConn(name, &fakePort{}), nil }
	_, err := Probe(context.Background(), dial, []string{"/dev/ttyS0"}, 10*time.Millisecond)
	if !errors.Is(err, ErrNoActivePort) {
		t.Fatalf("expected ErrNoActivePort, got %v", err)
	}
}
