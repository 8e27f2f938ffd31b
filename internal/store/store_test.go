// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "bench.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionsUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := SessionRecord{ID: "a", Dir: "/tmp/a", StartedAt: t0}
	second := SessionRecord{ID: "b", Dir: "/tmp/b", StartedAt: t0.Add(time.Hour)}
	for _, rec := range []SessionRecord{first, second} {
		if err := s.PutSession(ctx, rec); err != nil {
			t.Fatalf("PutSession: %v", err)
		}
	}

	first.StoppedAt = t0.Add(time.Minute)
	first.Samples = 42
	first.TotalImpulse = 12.5
	first.LogPath = "/tmp/a/calibration_data.txt"
	if err := s.PutSession(ctx, first); err != nil {
		t.Fatalf("PutSession update: %v", err)
	}

	got, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if !got[0].StoppedAt.IsZero() {
		t.Fatalf("expected running session to have zero stop time")
	}
	a := got[1]
	if a.Samples != 42 || a.TotalImpulse != 12.5 || a.LogPath != first.LogPath || !a.StoppedAt.Equal(first.StoppedAt) {
		t.Fatalf("update not applied: %+v", a)
	}

	limited, err := s.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessions limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 session, got %d", len(limited))
	}
}

func TestLatestCalibration(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, ok, err := s.LatestCalibration(ctx); err != nil || ok {
		t.Fatalf("expected no calibration, got ok=%v err=%v", ok, err)
	}

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, factor := range []float64{90, 100} {
		_, err := s.InsertCalibration(ctx, CalibrationRecord{
			At:          t0.Add(time.Duration(i) * time.Minute),
			Port:        "/dev/ttyUSB0",
			NoLoad:      100,
			KnownLoad:   600,
			KnownWeight: 5,
			Factor:      factor,
			Path:        "cal.json",
		})
		if err != nil {
			t.Fatalf("InsertCalibration: %v", err)
		}
	}

	rec, ok, err := s.LatestCalibration(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestCalibration: ok=%v err=%v", ok, err)
	}
	if rec.Factor != 100 || rec.Port != "/dev/ttyUSB0" {
		t.Fatalf("unexpected latest calibration: %+v", rec)
	}
}

func TestSessionsOrderWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	older := SessionRecord{ID: "older", Dir: "/tmp/o", StartedAt: base.Add(100 * time.Millisecond)}
	newer := SessionRecord{ID: "newer", Dir: "/tmp/n", StartedAt: base.Add(120 * time.Millisecond)}
	for _, rec := range []SessionRecord{older, newer} {
		if err := s.PutSession(ctx, rec); err != nil {
			t.Fatalf("PutSession: %v", err)
		}
	}

	got, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" || got[1].ID != "older" {
		t.Fatalf("expected newer before older, got %+v", got)
	}
	if !got[1].StartedAt.Equal(older.StartedAt) {
		t.Fatalf("start time round trip: got %v, want %v", got[1].StartedAt, older.StartedAt)
	}
}
