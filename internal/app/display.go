// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/oled"
	"github.com/relabs-tech/loadcell_bench/internal/telemetry"
)

// latest holds the most recent sample received over MQTT.
type latest struct {
	mu   sync.RWMutex
	d    loadcell.Derived
	have bool
}

func (l *latest) set(d loadcell.Derived) {
	l.mu.Lock()
	l.d, l.have = d, true
	l.mu.Unlock()
}

func (l *latest) get() (loadcell.Derived, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.d, l.have
}

// RunDisplay mirrors the bench readout on an SSD1306 OLED. It subscribes
// to the sample topic, so it runs beside `run` or `serve` with mqtt
// enabled.
func RunDisplay(cfg config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	panel, err := oled.Open(cfg.Display.I2CBus)
	if err != nil {
		return err
	}
	defer panel.Close()

	if err := panel.Splash(); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &latest{}
	client, err := telemetry.Subscribe(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-display", cfg.MQTT.Topic, data.set)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// Leave the splash up briefly before the first readout.
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(time.Second):
	}

	ticker := time.NewTicker(cfg.DisplayInterval())
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			log.Println("display: shutting down")
			return nil
		case <-ticker.C:
			d, have := data.get()
			if err := panel.Show(d, have); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}
