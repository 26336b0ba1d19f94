// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package probe

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/medwards/condow/client"
)

func TestNoOpFactoryNeverPanics(t *testing.T) {
	p := NoOpFactory{}.New("obj")
	p.DownloadStarted()
	p.DownloadCompleted(time.Second)
	p.DownloadFailed(time.Second, nil)
	p.QueueFull(3)
	p.PartStarted(0, client.ByteRange{})
	p.PartCompleted(0, client.ByteRange{}, time.Second)
	p.PartFailed(0, client.ByteRange{}, nil)
	p.ChunkCompleted(0, 0, 10)
	p.PanicDetected("x")
	p.RetryAttempt(0, 1, nil)
}

func TestSlogFactoryBindsLocation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := SlogFactory{Logger: logger}
	p := f.New("my-object")
	p.DownloadStarted()
	if !strings.Contains(buf.String(), "my-object") {
		t.Fatalf("log output %q does not mention the bound location", buf.String())
	}
}

func TestSlogFactoryFallsBackToDefaultLogger(t *testing.T) {
	f := SlogFactory{}
	p := f.New("obj")
	if p == nil {
		t.Fatalf("New should never return a nil Probe")
	}
	p.DownloadStarted()
}
