// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/config"
	"github.com/relabs-tech/loadcell_bench/internal/serialport"
	"github.com/relabs-tech/loadcell_bench/internal/store"
)

// RunPorts lists the host's serial ports.
func RunPorts() error {
	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	return writePorts(os.Stdout, ports)
}

func writePorts(out io.Writer, ports []serialport.PortInfo) error {
	if len(ports) == 0 {
		fmt.Fprintln(out, "no serial ports found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tPRODUCT")
	for _, p := range ports {
		usb, ids := "no", "-"
		if p.IsUSB {
			usb = "yes"
			ids = p.VID + ":" + p.PID
		}
		product := p.Product
		if product == "" {
			product = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, usb, ids, product)
	}
	return tw.Flush()
}

// RunProbe prints the first port that is transmitting.
func RunProbe(cfg config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	port, err := probePorts(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Println(port)
	return nil
}

// RunStatus queries the device's current scale factor.
func RunStatus(cfg config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	conn, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	scale, err := conn.Status(cfg.Serial.StatusLines)
	if err != nil {
		return err
	}
	fmt.Printf("%s: scale factor %v\n", conn.Name(), scale)
	return nil
}

// RunSessions lists recorded sessions and the latest calibration.
func RunSessions(cfg config.Config, limit int) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is empty, sessions are not indexed")
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	sessions, err := st.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	if err := writeSessions(os.Stdout, sessions); err != nil {
		return err
	}

	cal, ok, err := st.LatestCalibration(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("\nlast calibration %s on %s: factor %v (%s)\n",
			cal.At.Local().Format(time.DateTime), cal.Port, cal.Factor, cal.Path)
	}
	return nil
}

func writeSessions(out io.Writer, sessions []store.SessionRecord) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tSAMPLES\tTOTAL IMPULSE\tLOG")
	for _, s := range sessions {
		dur := "recording"
		if !s.StoppedAt.IsZero() {
			dur = s.StoppedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		logPath := s.LogPath
		if logPath == "" {
			logPath = "(unsaved) " + s.Dir
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f N.s\t%s\n",
			s.StartedAt.Local().Format(time.DateTime), dur, s.Samples, s.TotalImpulse, logPath)
	}
	return tw.Flush()
}
