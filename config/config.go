// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package config holds the tunables for a condow download: part size,
// concurrency, buffering, retry policy and whether to eagerly fetch an
// object's size. Every field can be set via functional option, and every
// field except SizeMode and Logger can also be loaded from a
// CONDOW_-prefixed environment variable (CONDOW_ALWAYS_GET_SIZE=true also
// sets SizeMode to SizeAlways).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// SizeMode controls when a download eagerly calls Client.Size before
// planning parts.
type SizeMode int

const (
	// SizeDefault defers to Config.AlwaysGetSize; a SuffixRange still
	// forces a size call regardless, since it cannot be resolved
	// without knowing the object's size.
	SizeDefault SizeMode = iota
	// SizeAlways always fetches size up front.
	SizeAlways
	// SizeOnlyIfRequired fetches size only when the requested range
	// cannot otherwise be resolved.
	SizeOnlyIfRequired
)

// Retry holds the request-retry tunables (see internal/retry.Policy).
type Retry struct {
	MaxAttempts    int
	InitialDelayMS int64
	DelayFactor    float64
	MaxDelayMS     int64
}

// DefaultRetry is used when no retry options are supplied.
func DefaultRetry() Retry {
	return Retry{
		MaxAttempts:    5,
		InitialDelayMS: 50,
		DelayFactor:    2.0,
		MaxDelayMS:     10_000,
	}
}

// Config carries every tunable of a condow download.
type Config struct {
	PartSizeBytes      uint64
	MaxConcurrency     int
	BufferSize         int
	BuffersFullDelayMS int64
	Retry              Retry
	AlwaysGetSize      bool
	SizeMode           SizeMode
	Logger             *slog.Logger
}

// Default returns the baseline configuration before options or
// environment overrides are applied.
func Default() Config {
	return Config{
		PartSizeBytes:      8 * 1024 * 1024,
		MaxConcurrency:     8,
		BufferSize:         2,
		BuffersFullDelayMS: 10,
		Retry:              DefaultRetry(),
		AlwaysGetSize:      false,
		SizeMode:           SizeDefault,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a Config.
type Option func(*Config)

// WithPartSizeBytes sets the size of each planned part.
func WithPartSizeBytes(n uint64) Option {
	return func(c *Config) { c.PartSizeBytes = n }
}

// WithMaxConcurrency sets the number of concurrent sequential workers.
func WithMaxConcurrency(n int) Option {
	return func(c *Config) { c.MaxConcurrency = n }
}

// WithBufferSize sets each worker's inbound part-request queue capacity.
func WithBufferSize(n int) Option {
	return func(c *Config) { c.BufferSize = n }
}

// WithBuffersFullDelay sets how long the dispatcher sleeps after a full
// round-robin lap finds every worker's queue full.
func WithBuffersFullDelay(ms int64) Option {
	return func(c *Config) { c.BuffersFullDelayMS = ms }
}

// WithRetry sets the request retry policy.
func WithRetry(r Retry) Option {
	return func(c *Config) { c.Retry = r }
}

// WithAlwaysGetSize requests that size be fetched up front even when the
// requested range could otherwise be resolved without it.
func WithAlwaysGetSize(always bool) Option {
	return func(c *Config) { c.AlwaysGetSize = always }
}

// WithSizeMode overrides the size-fetch policy directly.
func WithSizeMode(m SizeMode) Option {
	return func(c *Config) { c.SizeMode = m }
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// New builds a Config starting from Default, applying environment
// overrides, and then applying opts, so explicit options always win over
// the environment.
func New(opts ...Option) (Config, error) {
	c := Default()
	if err := c.ApplyEnv(); err != nil {
		return Config{}, err
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyEnv overrides c's fields from CONDOW_-prefixed environment
// variables, leaving fields whose variable is unset untouched.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("CONDOW_PART_SIZE_BYTES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CONDOW_PART_SIZE_BYTES: %w", err)
		}
		c.PartSizeBytes = n
	}
	if v, ok := os.LookupEnv("CONDOW_MAX_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONDOW_MAX_CONCURRENCY: %w", err)
		}
		c.MaxConcurrency = n
	}
	if v, ok := os.LookupEnv("CONDOW_BUFFER_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONDOW_BUFFER_SIZE: %w", err)
		}
		c.BufferSize = n
	}
	if v, ok := os.LookupEnv("CONDOW_BUFFERS_FULL_DELAY_MS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CONDOW_BUFFERS_FULL_DELAY_MS: %w", err)
		}
		c.BuffersFullDelayMS = n
	}
	if v, ok := os.LookupEnv("CONDOW_ALWAYS_GET_SIZE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CONDOW_ALWAYS_GET_SIZE: %w", err)
		}
		c.AlwaysGetSize = b
		if b {
			c.SizeMode = SizeAlways
		}
	}
	if v, ok := os.LookupEnv("CONDOW_RETRY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONDOW_RETRY_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = n
	}
	if v, ok := os.LookupEnv("CONDOW_RETRY_INITIAL_DELAY_MS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CONDOW_RETRY_INITIAL_DELAY_MS: %w", err)
		}
		c.Retry.InitialDelayMS = n
	}
	if v, ok := os.LookupEnv("CONDOW_RETRY_DELAY_FACTOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONDOW_RETRY_DELAY_FACTOR: %w", err)
		}
		c.Retry.DelayFactor = f
	}
	if v, ok := os.LookupEnv("CONDOW_RETRY_MAX_DELAY_MS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CONDOW_RETRY_MAX_DELAY_MS: %w", err)
		}
		c.Retry.MaxDelayMS = n
	}
	return nil
}

// Validate checks that c describes a usable download configuration.
func (c Config) Validate() error {
	if c.PartSizeBytes == 0 {
		return fmt.Errorf("condow: part_size_bytes must be > 0")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("condow: max_concurrency must be > 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("condow: buffer_size must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("condow: retry.max_attempts must be > 0")
	}
	return nil
}
