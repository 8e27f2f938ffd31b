// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"sync"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// subscriberBuffer is how many samples a slow websocket client may lag
// before samples are dropped for it.
const subscriberBuffer = 64

// Hub keeps the latest derived sample and fans samples out to live
// subscribers.
type Hub struct {
	mu   sync.RWMutex
	last loadcell.Derived
	have bool
	subs map[chan loadcell.Derived]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan loadcell.Derived]struct{})}
}

// Publish never blocks; subscribers that are full miss the sample.
func (h *Hub) Publish(d loadcell.Derived) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = d
	h.have = true
	for ch := range h.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

func (h *Hub) Latest() (loadcell.Derived, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}

// Subscribe returns a channel of future samples and a func that
// unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan loadcell.Derived, func()) {
	ch := make(chan loadcell.Derived, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}
