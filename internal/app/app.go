// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app holds the Run* entry points behind each loadbench
// subcommand. Each one builds its collaborators from a config.Config and
// owns them until it returns.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/loadcell_bench/internal/bench"
	"github.com/relabs-tech/loadcell_bench/internal/calibration"
	"github.com/relabs-tech/loadcell_bench/internal/chart"
	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/overlay"
	"github.com/relabs-tech/loadcell_bench/internal/recorder"
	"github.com/relabs-tech/loadcell_bench/internal/serialport"
	"github.com/relabs-tech/loadcell_bench/internal/store"
	"github.com/relabs-tech/loadcell_bench/internal/telemetry"
	"github.com/relabs-tech/loadcell_bench/internal/video"
)

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func dialer(cfg config.Config) serialport.Dialer {
	return func(port string) (*serialport.Conn, error) {
		return serialport.Connect(serialport.Options{
			Port:     port,
			BaudRate: cfg.Serial.BaudRate,
			Driver:   cfg.Serial.Driver,
		})
	}
}

// probePorts returns the first transmitting port on the host.
func probePorts(ctx context.Context, cfg config.Config) (string, error) {
	ports, err := serialport.ListPorts()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	log.Printf("serial: probing %d ports for %s each", len(names), cfg.ProbeWindow())
	return serialport.Probe(ctx, dialer(cfg), names, cfg.ProbeWindow())
}

// openLink opens the configured port, probing for one when none is set.
func openLink(ctx context.Context, cfg config.Config) (*serialport.Conn, error) {
	port := cfg.Serial.Port
	if port == "" {
		var err error
		if port, err = probePorts(ctx, cfg); err != nil {
			return nil, fmt.Errorf("no serial port configured and probing failed: %w", err)
		}
	}
	return dialer(cfg)(port)
}

// openStore opens the SQLite index, or returns nil when it is disabled.
func openStore(cfg config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}

func newStepper(cfg config.Config) (*bench.Stepper, *overlay.Compositor, error) {
	chartOpts := chart.DefaultOptions()
	if cfg.Chart.Title != "" {
		chartOpts.Title = cfg.Chart.Title
	}

	comp, err := overlay.NewCompositor(overlay.DefaultOptions(chart.ChromaKey))
	if err != nil {
		return nil, nil, err
	}

	var wm *overlay.Watermark
	if cfg.Overlay.Watermark != "" {
		if wm, err = overlay.LoadWatermark(cfg.Overlay.Watermark); err != nil {
			comp.Close()
			return nil, nil, err
		}
		log.Printf("bench: watermark %s loaded", cfg.Overlay.Watermark)
	}
	return bench.NewStepper(chart.NewRenderer(chartOpts), comp, wm, cfg.Overlay.Text), comp, nil
}

// newRecorder builds a session recorder writing under the configured base
// dir. st may be nil.
func newRecorder(cfg config.Config, source string, st *store.Store) *recorder.Recorder {
	var openVideo recorder.VideoOpener
	if cfg.Recording.Video {
		openVideo = func(path string) (recorder.FrameWriter, error) {
			w, err := video.OpenWriter(path, cfg.Camera.Codec, cfg.Camera.FPS, cfg.Camera.Width, cfg.Camera.Height)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}
	var index recorder.Index
	if st != nil {
		index = st
	}
	return recorder.New(recorder.Options{BaseDir: cfg.Recording.BaseDir, Source: source}, openVideo, index)
}

// newPublisher connects the MQTT publisher when enabled; the returned
// close func is always safe to call.
func newPublisher(cfg config.Config, suffix string) (*telemetry.Publisher, func(), error) {
	if !cfg.MQTT.Enabled {
		return nil, func() {}, nil
	}
	pub, err := telemetry.NewPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID+suffix, cfg.MQTT.Topic)
	if err != nil {
		return nil, func() {}, err
	}
	return pub, pub.Close, nil
}

// saveCalibration writes res as JSON and indexes it. st may be nil.
func saveCalibration(ctx context.Context, cfg config.Config, st *store.Store, res calibration.Result) (string, error) {
	path, err := calibration.WriteResult(cfg.Calibration.Dir, res)
	if err != nil {
		return "", err
	}
	log.Printf("calibration: result saved to %s", path)
	if st == nil {
		return path, nil
	}
	_, err = st.InsertCalibration(ctx, store.CalibrationRecord{
		At:          res.Timestamp,
		Port:        res.Port,
		NoLoad:      res.NoLoad,
		KnownLoad:   res.KnownLoad,
		KnownWeight: res.KnownWeight,
		Factor:      res.Factor,
		Path:        path,
	})
	if err != nil {
		return path, fmt.Errorf("failed to index calibration: %w", err)
	}
	return path, nil
}
