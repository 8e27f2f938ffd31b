// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package loadcell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire protocol of the bench firmware.
//
//	data:   <seq,time,force>\n  or  <seq,time,force,pressure>\n
//	status: g\n           -> <2,scale>\n
//	scale:  s<factor>\n
const (
	frameOpen  = "<"
	frameClose = ">"

	StatusCommand = "g\n"
	statusPrefix  = "<2,"
)

// ErrParse marks a line that is not a valid data frame.
var ErrParse = errors.New("malformed frame")

// ParseFrame parses one data line into a Sample.
func ParseFrame(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Sample{}, fmt.Errorf("%w: empty line", ErrParse)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(line, frameOpen), frameClose)

	fields := strings.Split(body, ",")
	if len(fields) != 3 && len(fields) != 4 {
		return Sample{}, fmt.Errorf("%w: got %d fields in %q", ErrParse, len(fields), line)
	}

	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: field %d in %q: %v", ErrParse, i, line, err)
		}
		vals[i] = v
	}

	s := Sample{Seq: vals[0], Time: vals[1], Force: vals[2]}
	if len(vals) == 4 {
		s.Pressure = vals[3]
		s.HasPressure = true
	}
	return s, nil
}

// ParseLine is ParseFrame folded to the poll contract: any parse failure
// is just "no sample".
func ParseLine(line string) (Sample, bool) {
	s, err := ParseFrame(line)
	if err != nil {
		return Sample{}, false
	}
	return s, true
}

// SetFactorCommand builds the command that stores a new scale factor on
// the device. The firmware reads it with parseFloat, so no exponent form.
func SetFactorCommand(factor float64) string {
	return "s" + strconv.FormatFloat(factor, 'f', -1, 64) + "\n"
}

// IsStatusReply reports whether line is a reply to StatusCommand.
func IsStatusReply(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), statusPrefix)
}

// ParseStatus extracts the scale factor from a `<2,scale>` reply.
func ParseStatus(line string) (float64, error) {
	line = strings.TrimSpace(line)
	if !IsStatusReply(line) {
		return 0, fmt.Errorf("%w: not a status reply: %q", ErrParse, line)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(line, statusPrefix), frameClose)
	scale, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: status scale %q: %v", ErrParse, body, err)
	}
	return scale, nil
}
