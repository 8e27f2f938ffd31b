// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"fmt"
	"io"
	"time"

	termios "github.com/jacobsa/go-serial/serial"
	bugst "go.bug.st/serial"
)

// Drivers. Both give a 1 s read timeout:
//   - "bugst" uses go.bug.st/serial and works on Linux, macOS and Windows.
//   - "termios" uses github.com/jacobsa/go-serial with VTIME, the driver the
//     Raspberry Pi bench images were built with.
const (
	DriverBugst   = "bugst"
	DriverTermios = "termios"
)

// Options selects the port and link parameters.
type Options struct {
	Port     string
	BaudRate int
	Driver   string // "" means DriverBugst
}

type opener func(Options) (io.ReadWriteCloser, error)

func driverName(d string) string {
	if d == "" {
		return DriverBugst
	}
	return d
}

func openerFor(driver string) (opener, error) {
	switch driverName(driver) {
	case DriverBugst:
		return openBugst, nil
	case DriverTermios:
		return openTermios, nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}

func openBugst(opts Options) (io.ReadWriteCloser, error) {
	mode := &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(opts.Port, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

func openTermios(opts Options) (io.ReadWriteCloser, error) {
	return termios.Open(termios.OpenOptions{
		PortName:        opts.Port,
		BaudRate:        uint(opts.BaudRate),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      termios.PARITY_NONE,
		MinimumReadSize: 0,
		// VTIME granularity is 100 ms.
		InterCharacterTimeout: uint(ReadTimeout / time.Millisecond),
	})
}
