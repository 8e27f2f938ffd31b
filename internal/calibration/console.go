// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ConsolePrompter asks on out and waits for a line on in. An empty line or
// "y" continues; "q", "n" or end of input cancels.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

func (p *ConsolePrompter) Confirm(ctx context.Context, _ State, msg string) (bool, error) {
	fmt.Fprintf(p.out, "%s [Enter to continue, q to cancel]: ", msg)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			if a.err == io.EOF {
				return false, nil
			}
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "q", "quit", "n", "no", "c", "cancel":
			return false, nil
		}
		return true, nil
	}
}
