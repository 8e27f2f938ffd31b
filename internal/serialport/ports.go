// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultProbeWindow is how long a port may stay silent during Probe.
const DefaultProbeWindow = 5 * time.Second

// ErrNoActivePort means no probed port produced a line.
var ErrNoActivePort = errors.New("no port is transmitting")

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name    string `json:"name"`
	IsUSB   bool   `json:"is_usb"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Product string `json:"product,omitempty"`
}

// ListPorts enumerates serial ports. USB details are filled in where the
// platform reports them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Printf("serial: detailed enumeration failed, falling back to names: %v", err)
		names, err := bugst.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		ports := make([]PortInfo, 0, len(names))
		for _, n := range names {
			ports = append(ports, PortInfo{Name: n})
		}
		return ports, nil
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// Dialer opens a port by name.
type Dialer func(port string) (*Conn, error)

// Probe opens each port in turn and returns the name of the first one
// that delivers a line within window. Every opened port is closed again.
func Probe(ctx context.Context, dial Dialer, ports []string, window time.Duration) (string, error) {
	if window <= 0 {
		window = DefaultProbeWindow
	}
	for _, name := range ports {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		conn, err := dial(name)
		if err != nil {
			log.Printf("serial: probe %s: %v", name, err)
			continue
		}

		line, err := firstLine(ctx, conn, window)
		conn.Close()
		if err != nil {
			log.Printf("serial: probe %s: %v", name, err)
			continue
		}
		if line == "" {
			log.Printf("serial: probe %s: no data within %s", name, window)
			continue
		}
		log.Printf("serial: probe %s is transmitting: %q", name, line)
		return name, nil
	}
	return "", ErrNoActivePort
}

func firstLine(ctx context.Context, conn *Conn, window time.Duration) (string, error) {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, ok, err := conn.ReadLine()
		if err != nil {
			return "", err
		}
		if ok && line != "" {
			return line, nil
		}
	}
	return "", nil
}
