// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileSource replays samples from a data file, one per poll.
//
// Accepted rows:
//
//	1.25 30.5 0.0        time force [pressure], whitespace separated
//	1.25,30.5,0.0        same, comma separated
//	<1,1.25,30.5>        raw frames captured from the serial port
//
// Blank lines and lines starting with '#' are skipped; unparseable rows
// poll as "no sample". io.EOF is returned once the file is exhausted.
type FileSource struct {
	f       *os.File
	scanner *bufio.Scanner
	row     int
}

// OpenFileSource opens path for replay.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	return &FileSource{f: f, scanner: bufio.NewScanner(f)}, nil
}

func (fs *FileSource) ReadSample() (Sample, bool, error) {
	for fs.scanner.Scan() {
		line := strings.TrimSpace(fs.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fs.row++
		if strings.HasPrefix(line, frameOpen) {
			s, ok := ParseLine(line)
			return s, ok, nil
		}
		s, ok := parseColumns(line, fs.row)
		return s, ok, nil
	}
	if err := fs.scanner.Err(); err != nil {
		return Sample{}, false, fmt.Errorf("error reading replay file: %w", err)
	}
	return Sample{}, false, io.EOF
}

func (fs *FileSource) Close() error {
	return fs.f.Close()
}

func parseColumns(line string, row int) (Sample, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) < 2 {
		return Sample{}, false
	}
	vals := make([]float64, 0, 3)
	for _, f := range fields[:min(len(fields), 3)] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Sample{}, false
		}
		vals = append(vals, v)
	}
	s := Sample{Seq: float64(row), Time: vals[0], Force: vals[1]}
	if len(vals) == 3 {
		s.Pressure = vals[2]
		s.HasPressure = true
	}
	return s, true
}
