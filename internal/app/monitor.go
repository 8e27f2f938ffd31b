// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/telemetry"
)

func printSample(out io.Writer, d loadcell.Derived) {
	fmt.Fprintf(out,
		"[LOAD] t=%8.3f s  F=%8.2f N  I=%9.2f N.s  total=%10.2f N.s\n",
		d.Time, d.Force, d.Impulse, d.CumulativeImpulse,
	)
}

// RunMonitor prints every sample published on the MQTT topic. With mock
// set it prints the synthetic curve instead, without a broker.
func RunMonitor(cfg config.Config, mock bool) error {
	ctx, stop := signalContext()
	defer stop()

	if mock {
		src := loadcell.NewMockSource()
		var acc loadcell.Accumulator
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s, ok, err := src.ReadSample()
				if err != nil {
					return err
				}
				if ok {
					printSample(os.Stdout, acc.Add(s))
				}
			}
		}
	}

	client, err := telemetry.Subscribe(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-monitor", cfg.MQTT.Topic, func(d loadcell.Derived) {
		printSample(os.Stdout, d)
	})
	if err != nil {
		return err
	}
	log.Printf("monitor: subscribed to %s", cfg.MQTT.Topic)

	<-ctx.Done()
	log.Println("monitor: shutting down")
	client.Disconnect(250)
	return nil
}
