// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the live sample feed and remote calibration over HTTP
// and websockets.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/loadcell_bench/internal/calibration"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // bench UI is served from a local device
	},
}

// Options configures the server's collaborators. Lease may be nil when
// serving a replay; the device endpoints then answer 503.
type Options struct {
	Hub    *Hub
	Lease  *Lease
	Stream *Stream

	// Calibration
	StatusLines  int
	ReadAttempts int
	Port         string
	// OnCalibrated persists a finished calibration and returns where it was
	// stored. May be nil.
	OnCalibrated func(calibration.Result) (string, error)

	StaticDir string
}

type Server struct {
	opts Options
}

func NewServer(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Stream == nil {
		opts.Stream = &Stream{}
	}
	return &Server{opts: opts}
}

func (s *Server) Hub() *Hub { return s.opts.Hub }

// Handler returns the routes:
//
//	GET /api/sample      latest derived sample
//	GET /api/status      device scale factor (`g` query)
//	POST /api/reset      zero the cumulative impulse
//	GET /ws/live         derived sample stream
//	GET /ws/calibrate    guided two-point calibration
//	GET /ws/serial       raw command console
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sample", s.handleSample)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/ws/live", s.handleLive)
	mux.HandleFunc("/ws/calibrate", s.handleCalibrate)
	mux.HandleFunc("/ws/serial", s.handleSerial)
	if s.opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return mux
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	d, ok := s.opts.Hub.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Lease == nil {
		http.Error(w, "no device attached", http.StatusServiceUnavailable)
		return
	}
	var scale float64
	err := s.opts.Lease.Do(func(l Link) error {
		var err error
		scale, err = l.Status(s.opts.StatusLines)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]float64{"scale": scale})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.opts.Stream.Reset()
	log.Printf("web: cumulative impulse reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	samples, cancel := s.opts.Hub.Subscribe()
	defer cancel()

	// The client only ever closes; reading detects that.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case d, ok := <-samples:
			if !ok {
				return
			}
			if err := conn.WriteJSON(d); err != nil {
				log.Printf("web: live write error: %v", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
