// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package probe defines the observability sink a download reports
// progress to. Every hook is infallible and must never block the
// caller; implementations that forward to a channel must do so on a
// best-effort basis, the same discipline the teacher's progress tracker
// uses for its own channel sends.
package probe

import (
	"log/slog"
	"time"

	"github.com/medwards/condow/client"
)

// Probe receives the lifecycle events of a single download. All methods
// must return promptly and must not panic; a Probe that misbehaves can
// stall the download machinery that calls it synchronously from worker
// goroutines.
type Probe interface {
	DownloadStarted()
	DownloadCompleted(elapsed time.Duration)
	DownloadFailed(elapsed time.Duration, err error)
	QueueFull(attempt int)
	PartStarted(partIndex uint64, br client.ByteRange)
	PartCompleted(partIndex uint64, br client.ByteRange, elapsed time.Duration)
	PartFailed(partIndex uint64, br client.ByteRange, err error)
	ChunkCompleted(partIndex uint64, chunkIndex int, n int)
	PanicDetected(recovered any)
	RetryAttempt(partIndex uint64, attempt int, err error)
}

// Factory produces a Probe scoped to a single download, keyed by the
// location being downloaded, the way the teacher's downloader derives a
// per-download *slog.Logger via Logger.With(...).
type Factory interface {
	New(location string) Probe
}

// NoOp is a Probe that does nothing, at zero cost.
type NoOp struct{}

func (NoOp) DownloadStarted()                                                         {}
func (NoOp) DownloadCompleted(time.Duration)                                          {}
func (NoOp) DownloadFailed(time.Duration, error)                                      {}
func (NoOp) QueueFull(int)                                                            {}
func (NoOp) PartStarted(uint64, client.ByteRange)                                     {}
func (NoOp) PartCompleted(uint64, client.ByteRange, time.Duration)                    {}
func (NoOp) PartFailed(uint64, client.ByteRange, error)                               {}
func (NoOp) ChunkCompleted(uint64, int, int)                                          {}
func (NoOp) PanicDetected(any)                                                        {}
func (NoOp) RetryAttempt(uint64, int, error)                                          {}

// NoOpFactory always returns a NoOp Probe.
type NoOpFactory struct{}

func (NoOpFactory) New(string) Probe { return NoOp{} }

// Slog is a Probe that logs every event through a *slog.Logger, grounded
// on the teacher's newDownloader, which binds download-scoped attributes
// once with Logger.With(...) rather than repeating them per call site.
type Slog struct {
	logger *slog.Logger
}

// NewSlog constructs a Slog probe bound to logger.
func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

func (s *Slog) DownloadStarted() {
	s.logger.Info("download started")
}

func (s *Slog) DownloadCompleted(elapsed time.Duration) {
	s.logger.Info("download completed", "elapsed", elapsed)
}

func (s *Slog) DownloadFailed(elapsed time.Duration, err error) {
	s.logger.Warn("download failed", "elapsed", elapsed, "error", err)
}

func (s *Slog) QueueFull(attempt int) {
	s.logger.Debug("all worker queues full", "attempt", attempt)
}

func (s *Slog) PartStarted(partIndex uint64, br client.ByteRange) {
	s.logger.Debug("part started", "part", partIndex, "range", br)
}

func (s *Slog) PartCompleted(partIndex uint64, br client.ByteRange, elapsed time.Duration) {
	s.logger.Debug("part completed", "part", partIndex, "range", br, "elapsed", elapsed)
}

func (s *Slog) PartFailed(partIndex uint64, br client.ByteRange, err error) {
	s.logger.Warn("part failed", "part", partIndex, "range", br, "error", err)
}

func (s *Slog) ChunkCompleted(partIndex uint64, chunkIndex int, n int) {
	s.logger.Debug("chunk completed", "part", partIndex, "chunk", chunkIndex, "bytes", n)
}

func (s *Slog) PanicDetected(recovered any) {
	s.logger.Error("panic detected during download", "recovered", recovered)
}

func (s *Slog) RetryAttempt(partIndex uint64, attempt int, err error) {
	s.logger.Debug("retrying part", "part", partIndex, "attempt", attempt, "error", err)
}

// SlogFactory produces a Slog probe per download, binding a "download"
// attribute the way the teacher's newDownloader binds "download": file.Name().
type SlogFactory struct {
	Logger *slog.Logger
}

func (f SlogFactory) New(location string) Probe {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return NewSlog(logger.With("pkg", "condow", "download", location))
}
