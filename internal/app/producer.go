// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// producerLogEvery is how often the producer logs a running summary.
const producerLogEvery = 5 * time.Second

// RunProducer reads the serial port headless and publishes every derived
// sample to MQTT, for hosts without a camera.
func RunProducer(cfg config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	if !cfg.MQTT.Enabled {
		return fmt.Errorf("produce needs mqtt.enabled = true")
	}

	pub, closePub, err := newPublisher(cfg, "-producer")
	if err != nil {
		return err
	}
	defer closePub()

	conn, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("producer: publishing %s to %s", conn.Name(), cfg.MQTT.Topic)

	var acc loadcell.Accumulator
	lastLog := time.Now()
	for ctx.Err() == nil {
		s, ok, err := conn.ReadSample()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		d := acc.Add(s)
		pub.Publish(d)

		if time.Since(lastLog) >= producerLogEvery {
			log.Printf("producer: %d samples, last F=%.2f N, total impulse %.2f N.s", acc.Count(), d.Force, d.CumulativeImpulse)
			lastLog = time.Now()
		}
	}
	log.Println("producer: shutting down")
	return nil
}
