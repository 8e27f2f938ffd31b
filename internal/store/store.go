// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store indexes recorded sessions and calibrations in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SessionRecord is the index entry for one recording session.
type SessionRecord struct {
	ID           string
	Dir          string
	StartedAt    time.Time
	StoppedAt    time.Time // zero while recording
	Samples      int
	TotalImpulse float64
	LogPath      string // empty until saved
	VideoPath    string
}

// CalibrationRecord is one completed two-point calibration.
type CalibrationRecord struct {
	ID          int64
	At          time.Time
	Port        string
	NoLoad      float64
	KnownLoad   float64
	KnownWeight float64
	Factor      float64
	Path        string // JSON copy on disk
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One writer; the bench and the web server may share the handle.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			stopped_at TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL DEFAULT 0,
			total_impulse REAL NOT NULL DEFAULT 0,
			log_path TEXT NOT NULL DEFAULT '',
			video_path TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS calibrations (
			id INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			port TEXT NOT NULL,
			no_load REAL NOT NULL,
			known_load REAL NOT NULL,
			known_weight REAL NOT NULL,
			factor REAL NOT NULL,
			path TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_calibrations_at ON calibrations(at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// PutSession inserts rec or replaces the entry with the same ID.
func (s *Store) PutSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, dir, started_at, stopped_at, samples, total_impulse, log_path, video_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			dir = excluded.dir,
			started_at = excluded.started_at,
			stopped_at = excluded.stopped_at,
			samples = excluded.samples,
			total_impulse = excluded.total_impulse,
			log_path = excluded.log_path,
			video_path = excluded.video_path`,
		rec.ID,
		rec.Dir,
		formatTime(rec.StartedAt),
		formatTime(rec.StoppedAt),
		rec.Samples,
		rec.TotalImpulse,
		rec.LogPath,
		rec.VideoPath,
	)
	if err != nil {
		return fmt.Errorf("store: put session %s: %w", rec.ID, err)
	}
	return nil
}

// ListSessions returns up to limit sessions, newest first. limit <= 0
// returns all of them.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dir, started_at, stopped_at, samples, total_impulse, log_path, video_path
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, stopped string
		if err := rows.Scan(&rec.ID, &rec.Dir, &started, &stopped, &rec.Samples, &rec.TotalImpulse, &rec.LogPath, &rec.VideoPath); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.StoppedAt, err = parseTime(stopped); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertCalibration stores rec and returns its row id.
func (s *Store) InsertCalibration(ctx context.Context, rec CalibrationRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calibrations (at, port, no_load, known_load, known_weight, factor, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.At),
		rec.Port,
		rec.NoLoad,
		rec.KnownLoad,
		rec.KnownWeight,
		rec.Factor,
		rec.Path,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert calibration: %w", err)
	}
	return res.LastInsertId()
}

// LatestCalibration returns the most recent calibration. ok is false when
// none has been recorded.
func (s *Store) LatestCalibration(ctx context.Context) (rec CalibrationRecord, ok bool, err error) {
	var at string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, at, port, no_load, known_load, known_weight, factor, path
		 FROM calibrations ORDER BY at DESC, id DESC LIMIT 1`).
		Scan(&rec.ID, &at, &rec.Port, &rec.NoLoad, &rec.KnownLoad, &rec.KnownWeight, &rec.Factor, &rec.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return CalibrationRecord{}, false, nil
	}
	if err != nil {
		return CalibrationRecord{}, false, fmt.Errorf("store: latest calibration: %w", err)
	}
	if rec.At, err = parseTime(at); err != nil {
		return CalibrationRecord{}, false, err
	}
	return rec, true, nil
}

// timeLayout is fixed width so that text order in SQL is time order.
// RFC3339Nano trims trailing zeros and would sort "05.1Z" after "05.12Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
