// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"log"
	"net/http"
	"strings"
)

// handleSerial is a raw command console: "send" writes cmd and returns
// the next line, "status" runs the `g` query.
func (s *Server) handleSerial(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		var resp WSResponse
		switch {
		case s.opts.Lease == nil:
			resp = WSResponse{Type: "error", Message: "no device attached"}

		case msg.Action == "send":
			cmd := msg.Command
			if strings.TrimSpace(cmd) == "" {
				resp = WSResponse{Type: "error", Message: "empty command"}
				break
			}
			if !strings.HasSuffix(cmd, "\n") {
				cmd += "\n"
			}
			var line string
			err := s.opts.Lease.Do(func(l Link) error {
				var err error
				line, err = l.SendCommand(cmd, true)
				return err
			})
			if err != nil {
				resp = WSResponse{Type: "error", Message: err.Error()}
				break
			}
			log.Printf("web: serial console sent %q, reply %q", strings.TrimSpace(cmd), line)
			resp = WSResponse{Type: "reply", Line: line}

		case msg.Action == "status":
			var scale float64
			err := s.opts.Lease.Do(func(l Link) error {
				var err error
				scale, err = l.Status(s.opts.StatusLines)
				return err
			})
			if err != nil {
				resp = WSResponse{Type: "error", Message: err.Error()}
				break
			}
			resp = WSResponse{Type: "status", Scale: scale}

		default:
			resp = WSResponse{Type: "error", Message: "unknown action " + msg.Action}
		}

		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("web: serial console write error: %v", err)
			return
		}
	}
}
