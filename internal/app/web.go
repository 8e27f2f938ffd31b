// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/calibration"
	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/web"
)

// ServeOptions selects the sample source for the web server. With neither
// set the serial port is used and calibration is available.
type ServeOptions struct {
	Replay    string
	Mock      bool
	StaticDir string
}

// mockInterval paces replay and mock sources served over the web.
const mockInterval = 50 * time.Millisecond

// RunServe streams derived samples over HTTP and websockets and exposes
// remote calibration when a device is attached.
func RunServe(cfg config.Config, opts ServeOptions) error {
	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	var (
		src   loadcell.SampleSource
		lease *web.Lease
		port  string
	)
	switch {
	case opts.Replay != "":
		fs, err := loadcell.OpenFileSource(opts.Replay)
		if err != nil {
			return err
		}
		defer fs.Close()
		src = web.Paced(fs, mockInterval)
	case opts.Mock:
		src = web.Paced(loadcell.NewMockSource(), mockInterval)
	default:
		conn, err := openLink(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		lease = web.NewLease(conn)
		src = lease
		port = conn.Name()
	}

	pub, closePub, err := newPublisher(cfg, "-web")
	if err != nil {
		return err
	}
	defer closePub()

	stream := &web.Stream{}
	srv := web.NewServer(web.Options{
		Lease:        lease,
		Stream:       stream,
		StatusLines:  cfg.Serial.StatusLines,
		ReadAttempts: cfg.Calibration.ReadAttempts,
		Port:         port,
		OnCalibrated: func(res calibration.Result) (string, error) {
			return saveCalibration(context.WithoutCancel(ctx), cfg, st, res)
		},
		StaticDir: opts.StaticDir,
	})

	sinks := []func(loadcell.Derived){srv.Hub().Publish}
	if pub != nil {
		sinks = append(sinks, pub.Publish)
	}
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- stream.Run(ctx, src, sinks...)
	}()

	httpSrv := &http.Server{Addr: cfg.WebListenAddr(), Handler: srv.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", httpSrv.Addr)
		serveErr <- httpSrv.ListenAndServe()
	}()

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case err := <-streamErr:
			if err != nil {
				log.Printf("web: sample stream stopped: %v", err)
			}
			// Keep serving the last sample until interrupted.
			streamErr = nil
		}
	}

	log.Println("web: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
