// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
)

func TestPayloadFields(t *testing.T) {
	d := loadcell.Derive(loadcell.Sample{Seq: 1, Time: 2, Force: 3.5}, 1)
	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	for _, k := range []string{"time_s", "force_n", "impulse", "cumulative_impulse"} {
		if _, ok := m[k]; !ok {
			t.Errorf("payload missing %q: %s", k, raw)
		}
	}
	if _, ok := m["pressure"]; ok {
		t.Errorf("pressure should be omitted when absent: %s", raw)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != d {
		t.Fatalf("decoded %+v, want %+v", got, d)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("<1,2,3>")); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
}
