// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package chart

import "github.com/relabs-tech/loadcell_bench/internal/loadcell"

// History is the series fed to Render. Re-rendering the full history each
// frame is O(n) per frame, so it keeps at most max points (newest wins).
// max <= 0 keeps everything.
type History struct {
	max int
	pts []loadcell.Derived
}

func NewHistory(max int) *History {
	return &History{max: max}
}

func (h *History) Push(d loadcell.Derived) {
	h.pts = append(h.pts, d)
	if h.max > 0 && len(h.pts) > h.max {
		// Compact once we are a full window over, so trimming is amortized.
		if len(h.pts) >= 2*h.max {
			h.pts = append(h.pts[:0], h.pts[len(h.pts)-h.max:]...)
		}
	}
}

// Points returns the current window, oldest first. The slice is shared;
// callers must not modify it.
func (h *History) Points() []loadcell.Derived {
	if h.max > 0 && len(h.pts) > h.max {
		return h.pts[len(h.pts)-h.max:]
	}
	return h.pts
}

func (h *History) Len() int { return len(h.Points()) }

func (h *History) Reset() { h.pts = h.pts[:0] }
