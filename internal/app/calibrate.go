// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/relabs-tech/loadcell_bench/internal/calibration"
	"github.com/relabs-tech/loadcell_bench/internal/config"
)

// RunCalibration runs the two-point calibration on the terminal. A
// knownWeight of zero uses calibration.known_weight from the config.
func RunCalibration(cfg config.Config, knownWeight float64) error {
	ctx, stop := signalContext()
	defer stop()

	if knownWeight == 0 {
		knownWeight = cfg.Calibration.KnownWeight
	}

	conn, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	fmt.Println("=== Load cell calibration ===")
	fmt.Printf("Port: %s, known weight: %v\n", conn.Name(), knownWeight)

	ctrl := calibration.NewController(conn, calibration.NewConsolePrompter(os.Stdin, os.Stdout), calibration.Options{
		Port:         conn.Name(),
		ReadAttempts: cfg.Calibration.ReadAttempts,
	})
	res, err := ctrl.Run(ctx, knownWeight)
	if errors.Is(err, calibration.ErrCancelled) {
		fmt.Println("Calibration cancelled, device left unchanged.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("No-load reading:    %v\n", res.NoLoad)
	fmt.Printf("Known-load reading: %v\n", res.KnownLoad)
	fmt.Printf("Conversion factor:  %v\n", res.Factor)
	if res.Ack != "" {
		fmt.Printf("Device replied:     %s\n", res.Ack)
	}

	path, err := saveCalibration(ctx, cfg, st, res)
	if err != nil {
		if path == "" {
			return err
		}
		log.Printf("calibration: %v", err)
	}
	fmt.Printf("Saved to %s\n", path)
	return nil
}
