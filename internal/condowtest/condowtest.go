// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package condowtest provides an in-memory client.Client[string] with
// scriptable failure injection, shared by every package's tests the way
// the teacher's mockStreamingReader (file/largefile/streaming_downloader_test.go)
// is shared across that package's own test files. Locations are plain
// string keys into an in-memory object table; byte ranges are served
// directly out of a slice rather than touching a filesystem or network.
package condowtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/medwards/condow/client"
)

// Step describes the outcome of one Fetch call. Steps are consumed in
// order, one per Fetch call, for a given location; once exhausted,
// Fetch succeeds normally for the remainder of the object. This models
// condow's two distinct failure points per §4.2: the call that opens
// the stream (Err, Panic) and the stream itself once opened
// (FailAfterBytes, ReadErr, ReadPanic).
type Step struct {
	// Err, if set, is returned directly by Fetch without a stream ever
	// being opened.
	Err error
	// Panic, if set, is recovered as a panic from inside Fetch itself
	// (before any stream is returned), exercising the retry layer's
	// own panic recovery (§4.2a) rather than a mid-stream one.
	Panic any

	// FailAfterBytes, if >= 0, makes the returned reader stop
	// delivering real data after that many bytes of this call's
	// payload and instead report ReadErr (or panic with ReadPanic).
	// A negative value (the zero Step's default is 0, so callers that
	// want no mid-stream failure must set NoFailure) disables this.
	FailAfterBytes int
	NoFailure      bool
	ReadErr        error
	ReadPanic      any
}

// ErrSimulatedStreamFailure is the default mid-stream error used when a
// Step requests a failure but does not supply its own ReadErr.
var ErrSimulatedStreamFailure = errors.New("condowtest: simulated stream read failure")

// FakeClient is a client.Client[string] backed by an in-memory byte
// table, with per-location scripted Size errors and per-call Fetch
// Steps.
type FakeClient struct {
	mu         sync.Mutex
	objects    map[string][]byte
	sizeErr    map[string]error
	steps      map[string][]Step
	sizeCalls  map[string]int
	fetchCalls map[string]int
	chunkSize  int
}

// New constructs an empty FakeClient. chunkSize bounds how many bytes
// each Read call returns at most, so tests can observe multiple Chunks
// per part without needing a real network's natural fragmentation;
// zero means "return everything available in one Read".
func New(chunkSize int) *FakeClient {
	return &FakeClient{
		objects:    map[string][]byte{},
		sizeErr:    map[string]error{},
		steps:      map[string][]Step{},
		sizeCalls:  map[string]int{},
		fetchCalls: map[string]int{},
		chunkSize:  chunkSize,
	}
}

// Put registers the full contents of the object at name.
func (f *FakeClient) Put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = append([]byte(nil), data...)
}

// FailSize makes every subsequent Size call against name return err.
func (f *FakeClient) FailSize(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizeErr[name] = err
}

// SetSteps replaces the Fetch call script for name. The first Fetch
// call against name consumes steps[0], the second steps[1], and so on;
// once exhausted, Fetch succeeds normally.
func (f *FakeClient) SetSteps(name string, steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[name] = steps
}

// SizeCalls reports how many times Size has been called for name.
func (f *FakeClient) SizeCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizeCalls[name]
}

// FetchCalls reports how many times Fetch has been called for name.
func (f *FakeClient) FetchCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[name]
}

// Size implements client.Client.
func (f *FakeClient) Size(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	f.sizeCalls[name]++
	err := f.sizeErr[name]
	data := f.objects[name]
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Fetch implements client.Client.
func (f *FakeClient) Fetch(_ context.Context, name string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
	f.mu.Lock()
	data := f.objects[name]
	idx := f.fetchCalls[name]
	f.fetchCalls[name]++
	var step Step
	if steps := f.steps[name]; idx < len(steps) {
		step = steps[idx]
	} else {
		step.NoFailure = true
	}
	chunkSize := f.chunkSize
	f.mu.Unlock()

	if step.Panic != nil {
		panic(step.Panic)
	}
	if step.Err != nil {
		return nil, client.BytesHint{}, step.Err
	}

	br := spec.Range
	if spec.Full {
		br = client.ByteRange{From: 0, To: int64(len(data)) - 1}
	}
	var payload []byte
	if br.Len() > 0 {
		payload = append([]byte(nil), data[br.From:br.To+1]...)
	}

	failAfter := -1
	if !step.NoFailure {
		failAfter = step.FailAfterBytes
	}
	r := &fakeReader{
		buf:       payload,
		failAfter: failAfter,
		readErr:   step.ReadErr,
		readPanic: step.ReadPanic,
		chunkSize: chunkSize,
	}
	return r, client.NewBytesHint(uint64(len(payload))), nil
}

// fakeReader serves buf in chunkSize-bounded reads, optionally failing
// (returning an error, or panicking) once failAfter bytes have been
// delivered.
type fakeReader struct {
	buf       []byte
	pos       int
	chunkSize int

	failAfter int
	fired     bool
	readErr   error
	readPanic any
}

func (r *fakeReader) Read(p []byte) (int, error) {
	if r.failAfter >= 0 && !r.fired && r.pos >= r.failAfter {
		r.fired = true
		if r.readPanic != nil {
			panic(r.readPanic)
		}
		if r.readErr != nil {
			return 0, r.readErr
		}
		return 0, ErrSimulatedStreamFailure
	}

	remaining := len(r.buf) - r.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > remaining {
		n = remaining
	}
	if r.chunkSize > 0 && n > r.chunkSize {
		n = r.chunkSize
	}
	if r.failAfter >= 0 && !r.fired && r.pos+n > r.failAfter {
		n = r.failAfter - r.pos
	}
	copy(p, r.buf[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *fakeReader) Close() error { return nil }

// Sequence returns the canonical n-byte test object used throughout
// condow's tests: the bytes 0, 1, 2, ..., (n-1) mod 256, matching §8's
// "object is the 100-byte sequence 0,1,...,99".
func Sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}
