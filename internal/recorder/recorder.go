// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder buffers derived samples and composited frames for one
// recording session and writes them to a session directory.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/loadcell_bench/internal/loadcell"
	"github.com/relabs-tech/loadcell_bench/internal/store"
)

var (
	// ErrEmptyData is returned by Save when no sample was recorded. No file
	// is written.
	ErrEmptyData = errors.New("recorder: no samples to save")
	// ErrIO wraps filesystem and video failures. Any open handle has been
	// closed by the time it is returned.
	ErrIO = errors.New("recorder: i/o error")
)

const (
	DefaultLogName   = "calibration_data.txt"
	DefaultVideoName = "calibration_video.avi"
	dirPrefix        = "calibration_data_"
	dirTimeLayout    = "20060102_150405"
)

// FrameWriter receives composited frames. Implementations own the
// encoder and release it on Close.
type FrameWriter interface {
	Write(frame image.Image) error
	Close() error
}

// VideoOpener creates the FrameWriter for a new session's video file.
type VideoOpener func(path string) (FrameWriter, error)

// Index persists session summaries. *store.Store satisfies it.
type Index interface {
	PutSession(ctx context.Context, rec store.SessionRecord) error
}

type Options struct {
	BaseDir   string
	LogName   string
	VideoName string
	Source    string // port or replay file, written to the manifest
	Now       func() time.Time
}

// Session is the state of one recording, from Start to the next Start.
type Session struct {
	ID        string
	Dir       string
	StartedAt time.Time
	StoppedAt time.Time
	LogPath   string // set by Save
	VideoPath string

	lines  []string
	total  float64
	video  FrameWriter
	active bool
}

// Lines returns a copy of the buffered log lines in arrival order.
func (s *Session) Lines() []string { return slices.Clone(s.lines) }

func (s *Session) Active() bool { return s.active }

// Recorder owns at most one session at a time.
type Recorder struct {
	opts      Options
	openVideo VideoOpener
	index     Index

	session *Session
}

// New returns an idle recorder. openVideo and index may be nil, in which
// case sessions record samples only and are not indexed.
func New(opts Options, openVideo VideoOpener, index Index) *Recorder {
	if opts.LogName == "" {
		opts.LogName = DefaultLogName
	}
	if opts.VideoName == "" {
		opts.VideoName = DefaultVideoName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{opts: opts, openVideo: openVideo, index: index}
}

// Session returns the current or most recent session, or nil.
func (r *Recorder) Session() *Session { return r.session }

func (r *Recorder) Active() bool { return r.session != nil && r.session.active }

// Start stops and discards any previous session and begins a new one
// in a fresh timestamped directory.
func (r *Recorder) Start(ctx context.Context) (*Session, error) {
	if err := r.Stop(ctx); err != nil {
		log.Printf("recorder: stopping previous session: %v", err)
	}
	r.session = nil

	now := r.opts.Now()
	dir, err := makeSessionDir(r.opts.BaseDir, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		Dir:       dir,
		StartedAt: now,
		active:    true,
	}

	if r.openVideo != nil {
		path := filepath.Join(dir, r.opts.VideoName)
		w, err := r.openVideo(path)
		if err != nil {
			if rerr := os.Remove(dir); rerr != nil {
				log.Printf("recorder: removing %s: %v", dir, rerr)
			}
			return nil, fmt.Errorf("%w: opening video %s: %v", ErrIO, path, err)
		}
		s.video = w
		s.VideoPath = path
	}

	r.session = s
	r.sync(ctx)
	log.Printf("recorder: session %s started in %s", s.ID, s.Dir)
	return s, nil
}

// Record appends one log line while a session is active.
func (r *Recorder) Record(d loadcell.Derived) {
	s := r.session
	if s == nil || !s.active {
		return
	}
	s.lines = append(s.lines, FormatLine(d))
	s.total = d.CumulativeImpulse
}

// RecordFrame writes frame to the session video while active. A write
// failure closes the video; later frames are dropped.
func (r *Recorder) RecordFrame(frame image.Image) error {
	s := r.session
	if s == nil || !s.active || s.video == nil {
		return nil
	}
	if err := s.video.Write(frame); err != nil {
		cerr := s.video.Close()
		s.video = nil
		if cerr != nil {
			log.Printf("recorder: closing video after write error: %v", cerr)
		}
		return fmt.Errorf("%w: writing frame: %v", ErrIO, err)
	}
	return nil
}

// Stop finalizes the video and keeps the sample buffer for Save.
func (r *Recorder) Stop(ctx context.Context) error {
	s := r.session
	if s == nil || !s.active {
		return nil
	}
	s.active = false
	s.StoppedAt = r.opts.Now()

	var err error
	if s.video != nil {
		if cerr := s.video.Close(); cerr != nil {
			err = fmt.Errorf("%w: closing video: %v", ErrIO, cerr)
		}
		s.video = nil
	}
	r.sync(ctx)
	log.Printf("recorder: session %s stopped with %d samples", s.ID, len(s.lines))
	return err
}

// Save writes the buffered lines to the session's log file and returns
// its path. It works both during and after recording.
func (r *Recorder) Save(ctx context.Context) (string, error) {
	s := r.session
	if s == nil || len(s.lines) == 0 {
		return "", ErrEmptyData
	}

	path := filepath.Join(s.Dir, r.opts.LogName)
	data := strings.Join(s.lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.LogPath = path
	r.sync(ctx)
	log.Printf("recorder: saved %d samples to %s", len(s.lines), path)
	return path, nil
}

// FormatLine renders `time,force,impulse,cumulative_impulse`.
func FormatLine(d loadcell.Derived) string {
	return formatFloat(d.Time) + "," +
		formatFloat(d.Force) + "," +
		formatFloat(d.Impulse) + "," +
		formatFloat(d.CumulativeImpulse)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sync refreshes the manifest and index entry. Both are best effort: the
// log file and video are the session's primary output.
func (r *Recorder) sync(ctx context.Context) {
	s := r.session
	if err := writeManifest(s, r.opts.Source); err != nil {
		log.Printf("recorder: manifest: %v", err)
	}
	if r.index == nil {
		return
	}
	rec := store.SessionRecord{
		ID:           s.ID,
		Dir:          s.Dir,
		StartedAt:    s.StartedAt,
		StoppedAt:    s.StoppedAt,
		Samples:      len(s.lines),
		TotalImpulse: s.total,
		LogPath:      s.LogPath,
		VideoPath:    s.VideoPath,
	}
	if err := r.index.PutSession(ctx, rec); err != nil {
		log.Printf("recorder: index: %v", err)
	}
}

// makeSessionDir creates base/calibration_data_<stamp>, adding a numeric
// suffix when two sessions start within the same second.
func makeSessionDir(base string, t time.Time) (string, error) {
	if base == "" {
		base = "."
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	name := dirPrefix + t.Format(dirTimeLayout)
	dir := filepath.Join(base, name)
	for i := 2; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		dir = filepath.Join(base, fmt.Sprintf("%s_%d", name, i))
	}
}
