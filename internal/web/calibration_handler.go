// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/loadcell_bench/internal/calibration"
)

// WSMessage is a client message on /ws/calibrate and /ws/serial.
type WSMessage struct {
	Action      string  `json:"action"` // init, next, cancel | send, status
	KnownWeight float64 `json:"known_weight,omitempty"`
	Command     string  `json:"cmd,omitempty"`
}

// WSResponse is a server message.
type WSResponse struct {
	Type    string  `json:"type"` // prompt, complete, cancelled, error | reply, status
	Step    string  `json:"step,omitempty"`
	Message string  `json:"message,omitempty"`
	Results any     `json:"results,omitempty"`
	Line    string  `json:"line,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
}

// calibrationSession is the websocket side of one calibration: it prompts
// the client and turns next/cancel into Confirm answers.
type calibrationSession struct {
	write func(v any) error // conn.WriteJSON

	writeMu sync.Mutex

	mu      sync.Mutex
	pending bool
	running bool
	cancel  context.CancelFunc
	answers chan bool
}

func (s *calibrationSession) send(resp WSResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.write(resp); err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
}

func (s *calibrationSession) sendError(message string) {
	s.send(WSResponse{Type: "error", Message: message})
}

// Confirm implements calibration.Prompter.
func (s *calibrationSession) Confirm(ctx context.Context, step calibration.State, msg string) (bool, error) {
	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()

	s.send(WSResponse{Type: "prompt", Step: step.String(), Message: msg})

	select {
	case ok := <-s.answers:
		return ok, nil
	case <-ctx.Done():
		s.mu.Lock()
		s.clearLocked()
		s.mu.Unlock()
		return false, ctx.Err()
	}
}

// answer delivers v to a waiting Confirm. It reports false when no prompt
// is outstanding. It never blocks.
func (s *calibrationSession) answer(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return false
	}
	select {
	case s.answers <- v:
		s.pending = false
		return true
	default:
		return false
	}
}

// clearLocked drops the outstanding prompt and any undelivered answer.
// s.mu must be held.
func (s *calibrationSession) clearLocked() {
	s.pending = false
	select {
	case <-s.answers:
	default:
	}
}

// handleCalibrate runs the guided calibration over a websocket.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sess := &calibrationSession{write: conn.WriteJSON, answers: make(chan bool, 1)}
	var wg sync.WaitGroup
	defer func() {
		sess.mu.Lock()
		if sess.cancel != nil {
			sess.cancel()
		}
		sess.mu.Unlock()
		wg.Wait()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("calibration: websocket read error: %v", err)
			}
			return
		}

		switch msg.Action {
		case "init":
			if s.opts.Lease == nil {
				sess.sendError("no device attached")
				continue
			}
			sess.mu.Lock()
			if sess.running {
				sess.mu.Unlock()
				sess.sendError("calibration already running")
				continue
			}
			ctx, cancel := context.WithCancel(r.Context())
			sess.clearLocked()
			sess.running = true
			sess.cancel = cancel
			sess.mu.Unlock()

			log.Printf("calibration: started with known weight %v", msg.KnownWeight)
			wg.Add(1)
			go func(weight float64) {
				defer wg.Done()
				defer cancel()
				s.runCalibration(ctx, sess, weight)
				sess.mu.Lock()
				sess.running = false
				sess.clearLocked()
				sess.cancel = nil
				sess.mu.Unlock()
			}(msg.KnownWeight)

		case "next":
			if !sess.answer(true) {
				sess.sendError("no prompt pending")
			}

		case "cancel":
			if sess.answer(false) {
				continue
			}
			sess.mu.Lock()
			if sess.cancel != nil {
				sess.cancel()
			}
			sess.mu.Unlock()

		default:
			sess.sendError("unknown action " + msg.Action)
		}
	}
}

func (s *Server) runCalibration(ctx context.Context, sess *calibrationSession, weight float64) {
	var res calibration.Result
	err := s.opts.Lease.Do(func(l Link) error {
		ctrl := calibration.NewController(l, sess, calibration.Options{
			Port:         s.opts.Port,
			ReadAttempts: s.opts.ReadAttempts,
		})
		var err error
		res, err = ctrl.Run(ctx, weight)
		return err
	})

	switch {
	case errors.Is(err, calibration.ErrCancelled), errors.Is(err, context.Canceled):
		log.Printf("calibration: cancelled by user")
		sess.send(WSResponse{Type: "cancelled"})
		return
	case err != nil:
		log.Printf("calibration: %v", err)
		sess.sendError(err.Error())
		return
	}

	var where string
	if s.opts.OnCalibrated != nil {
		if where, err = s.opts.OnCalibrated(res); err != nil {
			log.Printf("calibration: saving result: %v", err)
			sess.sendError("calibration applied but not saved: " + err.Error())
		}
	}
	sess.send(WSResponse{Type: "complete", Results: res, Message: where})
}
