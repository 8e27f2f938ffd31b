// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

// ReadTimeout bounds every blocking read on the link.
const ReadTimeout = 1 * time.Second

// maxLineLen caps the bytes buffered while waiting for a newline; a
// longer run means we are not talking to the bench firmware.
const maxLineLen = 512

var (
	// ErrConnection is matched by every *ConnectionError.
	ErrConnection = errors.New("serial connection error")

	// ErrNoReply means the device did not answer a command in time.
	ErrNoReply = errors.New("no reply from device")
)

// ConnectionError reports an unusable port: it could not be opened, or a
// read/write on an open link failed. The caller must reconnect.
type ConnectionError struct {
	Port string
	Op   string // "open", "read", "write"
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// Conn is an open link to the bench firmware. It is not safe for
// concurrent use; one reader at a time.
type Conn struct {
	name    string
	port    io.ReadWriteCloser
	buf     []byte
	pending []byte
}

// NewConn wraps an already opened port. The port's Read must return
// (0, nil) or (0, io.EOF) when its read timeout expires.
func NewConn(name string, port io.ReadWriteCloser) *Conn {
	return &Conn{
		name: name,
		port: port,
		buf:  make([]byte, 256),
	}
}

// Connect opens the named port with the configured driver.
func Connect(opts Options) (*Conn, error) {
	open, err := openerFor(opts.Driver)
	if err != nil {
		return nil, &ConnectionError{Port: opts.Port, Op: "open", Err: err}
	}
	port, err := open(opts)
	if err != nil {
		return nil, &ConnectionError{Port: opts.Port, Op: "open", Err: err}
	}
	log.Printf("serial: opened %s at %d baud (driver %s)", opts.Port, opts.BaudRate, driverName(opts.Driver))
	return NewConn(opts.Port, port), nil
}

func (c *Conn) Name() string { return c.name }

// ReadLine returns the next newline-terminated line without its line
// ending. ok=false means the read timed out before a full line arrived;
// partial data is kept for the next call.
func (c *Conn) ReadLine() (string, bool, error) {
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(c.pending[:i]), "\r")
			c.pending = append(c.pending[:0], c.pending[i+1:]...)
			return line, true, nil
		}

		n, err := c.port.Read(c.buf)
		if n > 0 {
			c.pending = append(c.pending, c.buf[:n]...)
			if len(c.pending) > maxLineLen {
				log.Printf("serial: dropping %d bytes without line ending on %s", len(c.pending), c.name)
				c.pending = c.pending[:0]
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, &ConnectionError{Port: c.name, Op: "read", Err: err}
		}
		return "", false, nil
	}
}

// ReadSample reads one line and parses it as a data frame. Timeouts,
// empty lines and malformed frames all come back as ok=false.
func (c *Conn) ReadSample() (loadcell.Sample, bool, error) {
	line, ok, err := c.ReadLine()
	if err != nil || !ok {
		return loadcell.Sample{}, false, err
	}
	s, ok := loadcell.ParseLine(line)
	return s, ok, nil
}

// SendCommand writes cmd verbatim. With awaitReply it then reads a single
// line; a timeout yields an empty reply, not an error.
func (c *Conn) SendCommand(cmd string, awaitReply bool) (string, error) {
	if _, err := c.port.Write([]byte(cmd)); err != nil {
		return "", &ConnectionError{Port: c.name, Op: "write", Err: err}
	}
	if !awaitReply {
		return "", nil
	}
	line, _, err := c.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Status queries the device scale factor. Data frames keep streaming while
// the query is in flight, so up to maxLines lines are scanned for the reply.
func (c *Conn) Status(maxLines int) (float64, error) {
	if maxLines <= 0 {
		maxLines = 1
	}
	if _, err := c.SendCommand(loadcell.StatusCommand, false); err != nil {
		return 0, err
	}
	for i := 0; i < maxLines; i++ {
		line, ok, err := c.ReadLine()
		if err != nil {
			return 0, err
		}
		if !ok || !loadcell.IsStatusReply(line) {
			continue
		}
		return loadcell.ParseStatus(line)
	}
	return 0, fmt.Errorf("status query on %s: %w after %d lines", c.name, ErrNoReply, maxLines)
}

func (c *Conn) Close() error {
	log.Printf("serial: closing %s", c.name)
	return c.port.Close()
}
