// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/loadcell_bench/internal/calibration"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// fakeLink hands out forces in order and records commands.
type fakeLink struct {
	mu     sync.Mutex
	forces []float64
	sent   []string
	scale  float64
}

func (f *fakeLink) ReadSample() (loadcell.Sample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forces) == 0 {
		return loadcell.Sample{}, false, nil
	}
	v := f.forces[0]
	f.forces = f.forces[1:]
	return loadcell.Sample{Seq: 1, Time: 1, Force: v}, true, nil
}

func (f *fakeLink) SendCommand(cmd string, awaitReply bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	return "<ok>", nil
}

func (f *fakeLink) Status(maxLines int) (float64, error) {
	return f.scale, nil
}

func (f *fakeLink) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// sliceSource yields the given samples then io.EOF.
type sliceSource struct {
	samples []loadcell.Sample
}

func (s *sliceSource) ReadSample() (loadcell.Sample, bool, error) {
	if len(s.samples) == 0 {
		return loadcell.Sample{}, false, io.EOF
	}
	v := s.samples[0]
	s.samples = s.samples[1:]
	return v, true, nil
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) WSResponse {
	t.Helper()
	var resp WSResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	if _, ok := h.Latest(); ok {
		t.Fatalf("Latest on empty hub should report no data")
	}

	ch, cancel := h.Subscribe()
	d := loadcell.Derived{Sample: loadcell.Sample{Time: 1, Force: 2}, Impulse: 2, CumulativeImpulse: 2}
	h.Publish(d)

	got := <-ch
	if got != d {
		t.Fatalf("subscriber got %+v, want %+v", got, d)
	}
	if last, ok := h.Latest(); !ok || last != d {
		t.Fatalf("Latest = %+v, %v", last, ok)
	}

	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
	h.Publish(d) // no subscribers left
}

func TestStreamRunDerivesAndResets(t *testing.T) {
	var st Stream
	var got []loadcell.Derived
	src := &sliceSource{samples: []loadcell.Sample{
		{Time: 1, Force: 2},
		{Time: 2, Force: 3},
	}}
	if err := st.Run(context.Background(), src, func(d loadcell.Derived) { got = append(got, d) }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || got[1].CumulativeImpulse != 8 {
		t.Fatalf("derived = %+v", got)
	}

	st.Reset()
	got = nil
	src = &sliceSource{samples: []loadcell.Sample{{Time: 1, Force: 1}}}
	st.Run(context.Background(), src, func(d loadcell.Derived) { got = append(got, d) })
	if len(got) != 1 || got[0].CumulativeImpulse != 1 {
		t.Fatalf("after reset = %+v", got)
	}
}

func TestSampleEndpoint(t *testing.T) {
	s := NewServer(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sample")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before data = %d", resp.StatusCode)
	}

	s.Hub().Publish(loadcell.Derived{Sample: loadcell.Sample{Time: 1.5, Force: 4}, Impulse: 6, CumulativeImpulse: 9.5})

	resp, err = http.Get(srv.URL + "/api/sample")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["force_n"] != 4.0 || body["cumulative_impulse"] != 9.5 {
		t.Fatalf("body = %v", body)
	}
}

func TestStatusAndReset(t *testing.T) {
	link := &fakeLink{scale: 412.5}
	stream := &Stream{}
	s := NewServer(Options{Lease: NewLease(link), Stream: stream, StatusLines: 3})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body map[string]float64
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["scale"] != 412.5 {
		t.Fatalf("status body = %v", body)
	}

	resp, err = http.Get(srv.URL + "/api/reset")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/reset = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST /api/reset = %d", resp.StatusCode)
	}
}

func TestStatusWithoutDevice(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestLiveStream(t *testing.T) {
	s := NewServer(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/live")

	// The subscription is registered after the upgrade; publish until the
	// client sees a sample.
	want := loadcell.Derived{Sample: loadcell.Sample{Time: 2, Force: 3}, Impulse: 6, CumulativeImpulse: 6}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				s.Hub().Publish(want)
			}
		}
	}()

	var got loadcell.Derived
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != want {
		t.Fatalf("live sample = %+v, want %+v", got, want)
	}
}

func TestCalibrateOverWebsocket(t *testing.T) {
	link := &fakeLink{forces: []float64{100, 600}}
	var saved calibration.Result
	var mu sync.Mutex
	s := NewServer(Options{
		Lease: NewLease(link),
		Port:  "/dev/ttyUSB0",
		OnCalibrated: func(res calibration.Result) (string, error) {
			mu.Lock()
			saved = res
			mu.Unlock()
			return "/tmp/calibration.json", nil
		},
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/calibrate")
	if err := conn.WriteJSON(WSMessage{Action: "init", KnownWeight: 5}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, step := range []string{"awaiting_no_load", "awaiting_known_load"} {
		resp := readResponse(t, conn)
		if resp.Type != "prompt" || resp.Step != step {
			t.Fatalf("got %+v, want prompt for %s", resp, step)
		}
		conn.WriteJSON(WSMessage{Action: "next"})
	}

	resp := readResponse(t, conn)
	if resp.Type != "complete" || resp.Message != "/tmp/calibration.json" {
		t.Fatalf("final response = %+v", resp)
	}
	results, _ := resp.Results.(map[string]any)
	if results["conversion_factor"] != 100.0 {
		t.Fatalf("results = %v", resp.Results)
	}

	mu.Lock()
	defer mu.Unlock()
	if saved.Factor != 100 || saved.Port != "/dev/ttyUSB0" {
		t.Fatalf("saved = %+v", saved)
	}
	if cmds := link.commands(); len(cmds) != 1 || cmds[0] != "s100\n" {
		t.Fatalf("commands = %q", cmds)
	}
}

func TestCalibrateCancel(t *testing.T) {
	link := &fakeLink{forces: []float64{100, 600}}
	srv := httptest.NewServer(NewServer(Options{Lease: NewLease(link)}).Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/calibrate")

	conn.WriteJSON(WSMessage{Action: "next"})
	if resp := readResponse(t, conn); resp.Type != "error" {
		t.Fatalf("next without prompt = %+v", resp)
	}

	conn.WriteJSON(WSMessage{Action: "init", KnownWeight: 5})
	if resp := readResponse(t, conn); resp.Type != "prompt" {
		t.Fatalf("got %+v", resp)
	}
	conn.WriteJSON(WSMessage{Action: "cancel"})
	if resp := readResponse(t, conn); resp.Type != "cancelled" {
		t.Fatalf("got %+v, want cancelled", resp)
	}
	if cmds := link.commands(); len(cmds) != 0 {
		t.Fatalf("cancel sent %q", cmds)
	}
}

func TestCalibrateZeroWeight(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{Lease: NewLease(&fakeLink{})}).Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/calibrate")
	conn.WriteJSON(WSMessage{Action: "init", KnownWeight: 0})
	resp := readResponse(t, conn)
	if resp.Type != "error" || !strings.Contains(resp.Message, calibration.ErrDivision.Error()) {
		t.Fatalf("got %+v", resp)
	}
}

func TestSerialConsole(t *testing.T) {
	link := &fakeLink{scale: 7}
	srv := httptest.NewServer(NewServer(Options{Lease: NewLease(link)}).Handler())
	defer srv.Close()

	conn := dial(t, srv, "/ws/serial")

	conn.WriteJSON(WSMessage{Action: "send", Command: "g"})
	if resp := readResponse(t, conn); resp.Type != "reply" || resp.Line != "<ok>" {
		t.Fatalf("send reply = %+v", resp)
	}
	if cmds := link.commands(); len(cmds) != 1 || cmds[0] != "g\n" {
		t.Fatalf("commands = %q", cmds)
	}

	conn.WriteJSON(WSMessage{Action: "status"})
	if resp := readResponse(t, conn); resp.Type != "status" || resp.Scale != 7 {
		t.Fatalf("status reply = %+v", resp)
	}

	conn.WriteJSON(WSMessage{Action: "send", Command: "  "})
	if resp := readResponse(t, conn); resp.Type != "error" {
		t.Fatalf("empty command reply = %+v", resp)
	}
}

func newTestSession() (*calibrationSession, *[]WSResponse) {
	var sent []WSResponse
	sess := &calibrationSession{
		answers: make(chan bool, 1),
		write: func(v any) error {
			sent = append(sent, v.(WSResponse))
			return nil
		},
	}
	return sess, &sent
}

func TestConfirmCancelledClearsPrompt(t *testing.T) {
	sess, sent := newTestSession()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sess.Confirm(ctx, calibration.AwaitingNoLoad, "remove load"); err == nil {
		t.Fatalf("expected context error")
	}
	if len(*sent) != 1 || (*sent)[0].Type != "prompt" {
		t.Fatalf("sent = %+v", *sent)
	}
	if sess.answer(true) {
		t.Fatalf("answer accepted after the prompt was abandoned")
	}
	if len(sess.answers) != 0 {
		t.Fatalf("stale answer left buffered")
	}
}

func TestStaleAnswerDoesNotSkipNextPrompt(t *testing.T) {
	sess, _ := newTestSession()

	// An answer that raced a cancelled run is still buffered.
	sess.pending = true
	if !sess.answer(true) {
		t.Fatalf("answer not delivered")
	}
	// A second one must not block while the buffer is full.
	sess.pending = true
	if sess.answer(false) {
		t.Fatalf("second answer reported delivered into a full buffer")
	}

	sess.mu.Lock()
	sess.clearLocked()
	sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if ok, err := sess.Confirm(ctx, calibration.AwaitingNoLoad, "remove load"); err == nil {
		t.Fatalf("new prompt answered by a stale value (ok=%v)", ok)
	}
}
