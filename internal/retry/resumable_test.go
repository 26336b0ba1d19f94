// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package retry

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/medwards/condow/client"
	cerrors "github.com/medwards/condow/errors"
)

// breakingReader yields data up to breakAt bytes, then returns readErr
// (or panics with readPanic) exactly once.
type breakingReader struct {
	data      []byte
	pos       int
	breakAt   int
	fired     bool
	readErr   error
	readPanic any
}

func (r *breakingReader) Read(p []byte) (int, error) {
	if !r.fired && r.pos >= r.breakAt && r.pos < len(r.data) {
		r.fired = true
		if r.readPanic != nil {
			panic(r.readPanic)
		}
		return 0, r.readErr
	}
	remaining := len(r.data) - r.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > remaining {
		n = remaining
	}
	if r.pos+n > r.breakAt {
		n = r.breakAt - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *breakingReader) Close() error { return nil }

func fullSpec(data []byte) client.DownloadSpec {
	return client.DownloadSpec{Range: client.ByteRange{From: 0, To: int64(len(data)) - 1}}
}

func TestResumableStreamResumesAfterBreak(t *testing.T) {
	data := []byte("0123456789")
	first := &breakingReader{data: data, breakAt: 4, readErr: errTest}
	calls := 0
	fetch := func(ctx context.Context, loc string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
		calls++
		if calls == 1 {
			return first, client.NewBytesHint(uint64(len(data))), nil
		}
		remaining := data[spec.Range.From:]
		return &breakingReader{data: remaining, breakAt: len(remaining)}, client.NewBytesHint(uint64(len(remaining))), nil
	}

	policy := New(3, time.Millisecond, 1, time.Millisecond)
	rs, _, err := NewResumableStream(context.Background(), policy, fetch, "loc", fullSpec(data), nil)
	if err != nil {
		t.Fatalf("NewResumableStream: %v", err)
	}
	defer rs.Close()

	got, err := io.ReadAll(readerFunc(rs.Read))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
	if calls != 2 {
		t.Fatalf("fetch called %d times, want 2 (one break, one resumption)", calls)
	}
}

func TestResumableStreamStopsAtMaxAttempts(t *testing.T) {
	data := []byte("0123456789")
	fetch := func(ctx context.Context, loc string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
		remaining := data[spec.Range.From:]
		return &breakingReader{data: remaining, breakAt: 2, readErr: errTest}, client.NewBytesHint(uint64(len(remaining))), nil
	}

	// MaxAttempts of 1 allows exactly one resumption; the second break
	// (on the resumed stream) exhausts the budget and must surface.
	policy := New(1, time.Millisecond, 1, time.Millisecond)
	rs, _, err := NewResumableStream(context.Background(), policy, fetch, "loc", fullSpec(data), nil)
	if err != nil {
		t.Fatalf("NewResumableStream: %v", err)
	}
	defer rs.Close()

	_, err = io.ReadAll(readerFunc(rs.Read))
	if err == nil {
		t.Fatalf("expected a terminal error once the resumption budget is exhausted")
	}
}

func TestResumableStreamRecoversPanicDuringReissue(t *testing.T) {
	data := []byte("0123456789")
	calls := 0
	fetch := func(ctx context.Context, loc string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
		calls++
		if calls == 1 {
			return &breakingReader{data: data, breakAt: 3, readErr: errTest}, client.NewBytesHint(uint64(len(data))), nil
		}
		panic("reissue exploded")
	}

	policy := New(2, time.Millisecond, 1, time.Millisecond)
	rs, _, err := NewResumableStream(context.Background(), policy, fetch, "loc", fullSpec(data), nil)
	if err != nil {
		t.Fatalf("NewResumableStream: %v", err)
	}
	defer rs.Close()

	_, err = io.ReadAll(readerFunc(rs.Read))
	if err == nil {
		t.Fatalf("expected an error")
	}
	ce, ok := err.(*cerrors.Error)
	if !ok {
		t.Fatalf("got %T, want *cerrors.Error", err)
	}
	if ce.Kind != cerrors.Io || ce.Msg != "panicked while retrying" {
		t.Fatalf("got kind=%v msg=%q, want Io/%q", ce.Kind, ce.Msg, "panicked while retrying")
	}
}

var errTest = io.ErrUnexpectedEOF

// readerFunc adapts a bare Read method to io.Reader.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
