// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package localfs provides a condow client.Client backed by the local
// filesystem, mirroring condow_fs sitting beside condow_core in the
// original implementation: a minimal adapter that exists to give the
// core machinery something real to drive in tests and examples.
package localfs

import (
	"context"
	"io"
	"os"

	"github.com/medwards/condow/client"
	cerrors "github.com/medwards/condow/errors"
)

// Client serves byte ranges of files rooted at Dir.
type Client struct {
	Dir string
}

// New constructs a Client rooted at dir.
func New(dir string) *Client {
	return &Client{Dir: dir}
}

func (c *Client) path(name string) string {
	return c.Dir + string(os.PathSeparator) + name
}

// Size implements client.Client.
func (c *Client) Size(_ context.Context, name string) (int64, error) {
	fi, err := os.Stat(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, cerrors.Wrap(cerrors.NotFound, "stat "+name, err)
		}
		if os.IsPermission(err) {
			return 0, cerrors.Wrap(cerrors.AccessDenied, "stat "+name, err)
		}
		return 0, cerrors.Wrap(cerrors.Io, "stat "+name, err)
	}
	return fi.Size(), nil
}

// Fetch implements client.Client.
func (c *Client) Fetch(_ context.Context, name string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
	f, err := os.Open(c.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, client.BytesHint{}, cerrors.Wrap(cerrors.NotFound, "open "+name, err)
		}
		if os.IsPermission(err) {
			return nil, client.BytesHint{}, cerrors.Wrap(cerrors.AccessDenied, "open "+name, err)
		}
		return nil, client.BytesHint{}, cerrors.Wrap(cerrors.Io, "open "+name, err)
	}
	if spec.Full {
		fi, statErr := f.Stat()
		if statErr != nil {
			_ = f.Close()
			return nil, client.BytesHint{}, cerrors.Wrap(cerrors.Io, "stat "+name, statErr)
		}
		return f, client.NewBytesHint(uint64(fi.Size())), nil
	}
	if _, err := f.Seek(spec.Range.From, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, client.BytesHint{}, cerrors.Wrap(cerrors.Io, "seek "+name, err)
	}
	length := spec.Range.Len()
	return &limitedFile{f: f, r: io.LimitReader(f, length)}, client.NewBytesHint(uint64(length)), nil
}

// limitedFile bounds reads to a byte range while still closing the
// underlying *os.File.
type limitedFile struct {
	f *os.File
	r io.Reader
}

func (l *limitedFile) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedFile) Close() error               { return l.f.Close() }
