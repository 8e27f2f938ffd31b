// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command loadbench drives the load-cell test bench: live capture with a
// chart overlay, calibration, replay and monitoring.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/loadcell_bench/internal/app"
	"github.com/relabs-tech/loadcell_bench/internal/config"
)

var (
	configPath string
	portFlag   string
	noPreview  bool

	calibrateWeight float64

	replayMock     bool
	replayCamera   bool
	replayDuration time.Duration

	serveReplay string
	serveMock   bool
	serveStatic string

	sessionsLimit int

	monitorMock bool

	configForce bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "loadbench",
		Short:        "Load cell bench: capture, calibrate, replay",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "serial port (overrides serial.port; empty probes)")
	rootCmd.PersistentFlags().BoolVar(&noPreview, "no-preview", false, "run without the preview window")

	rootCmd.AddCommand(
		newPortsCmd(),
		newProbeCmd(),
		newStatusCmd(),
		newCalibrateCmd(),
		newRunCmd(),
		newReplayCmd(),
		newServeCmd(),
		newSessionsCmd(),
		newDisplayCmd(),
		newMonitorCmd(),
		newProduceCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Serial.Port = portFlag
	}
	if noPreview {
		cfg.Camera.Preview = false
	}
	return cfg, nil
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.RunPorts()
		},
	}
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Find the port the bench is transmitting on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.RunProbe(cfg)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query the device's current scale factor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.RunStatus(cfg)
		},
	}
}

func newCalibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Two-point calibration (no load, known load)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log.Println("starting load cell calibration")
			return app.RunCalibration(cfg, calibrateWeight)
		},
	}
	cmd.Flags().Float64Var(&calibrateWeight, "weight", 0, "known weight (default: calibration.known_weight)")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Live capture: camera, chart overlay and recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log.Println("starting load cell bench")
			return app.RunBench(cfg)
		},
	}
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [data-file]",
		Short: "Replay a data file (or the mock curve) through the overlay and recorder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := app.ReplayOptions{Mock: replayMock, Camera: replayCamera, Duration: replayDuration}
			if len(args) == 1 {
				opts.File = args[0]
			}
			return app.RunReplay(cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&replayMock, "mock", false, "use the synthetic thrust curve")
	cmd.Flags().BoolVar(&replayCamera, "camera", false, "composite over the camera instead of a black frame")
	cmd.Flags().DurationVar(&replayDuration, "duration", 0, "stop after this long (e.g. 30s)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live feed, device status and remote calibration over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log.Println("starting load cell web server")
			return app.RunServe(cfg, app.ServeOptions{
				Replay:    serveReplay,
				Mock:      serveMock,
				StaticDir: serveStatic,
			})
		},
	}
	cmd.Flags().StringVar(&serveReplay, "replay", "", "serve a data file instead of the serial port")
	cmd.Flags().BoolVar(&serveMock, "mock", false, "serve the synthetic thrust curve")
	cmd.Flags().StringVar(&serveStatic, "static", "", "directory of static files served at /")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.RunSessions(cfg, sessionsLimit)
		},
	}
	cmd.Flags().IntVar(&sessionsLimit, "last", 20, "number of sessions to show (0 = all)")
	return cmd
}

func newDisplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Show the readout on an SSD1306 OLED (subscribes over MQTT)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.RunDisplay(cfg)
		},
	}
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print samples published over MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return app.RunMonitor(cfg, monitorMock)
		},
	}
	cmd.Flags().BoolVar(&monitorMock, "mock", false, "print the synthetic curve without a broker")
	return cmd
}

func newProduceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "produce",
		Short: "Headless: publish serial samples to MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log.Println("starting load cell producer")
			return app.RunProducer(cfg)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(configPath); err == nil && !configForce {
				return fmt.Errorf("%s exists (use --force to overwrite)", configPath)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Write(configPath); err != nil {
				return err
			}
			fmt.Printf("config written to %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	return cmd
}
