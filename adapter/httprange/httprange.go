// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package httprange provides a condow client.Client that fetches byte
// ranges of an HTTP(S) resource using the standard Range header,
// mirroring condow_rusoto's role beside condow_core in the original
// implementation: a concrete network-facing adapter the core machinery
// can drive, here built on net/http rather than translating any
// particular cloud SDK.
package httprange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloudeng.io/logging/ctxlog"
	"golang.org/x/time/rate"

	"github.com/medwards/condow/client"
	cerrors "github.com/medwards/condow/errors"
)

// Client fetches ranges of a single HTTP(S) URL per download location.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// New constructs a Client. If limiter is nil, requests are not
// rate-limited.
func New(httpClient *http.Client, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{HTTP: httpClient, Limiter: limiter}
}

// Size implements client.Client by issuing a HEAD request and reading
// Content-Length.
func (c *Client) Size(ctx context.Context, url string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.Other, "building HEAD request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		ctxlog.Debug(ctx, "httprange: HEAD failed", "url", url, "error", err)
		return 0, cerrors.Wrap(cerrors.Remote, "HEAD "+url, err)
	}
	defer resp.Body.Close()
	if err := classify(resp.StatusCode); err != nil {
		return 0, err
	}
	return resp.ContentLength, nil
}

// Fetch implements client.Client by issuing a GET request with a Range
// header, parsing the resulting 206/200 response.
func (c *Client) Fetch(ctx context.Context, url string, spec client.DownloadSpec) (io.ReadCloser, client.BytesHint, error) {
	if err := c.wait(ctx); err != nil {
		return nil, client.BytesHint{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, client.BytesHint{}, cerrors.Wrap(cerrors.Other, "building GET request", err)
	}
	if !spec.Full {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", spec.Range.From, spec.Range.To))
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		ctxlog.Debug(ctx, "httprange: GET failed", "url", url, "error", err)
		return nil, client.BytesHint{}, cerrors.Wrap(cerrors.Remote, "GET "+url, err)
	}
	if err := classify(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, client.BytesHint{}, err
	}
	hint := client.NewBytesHintUnknown()
	if resp.ContentLength >= 0 {
		hint = client.NewBytesHint(uint64(resp.ContentLength))
	} else if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, perr := strconv.ParseUint(cl, 10, 64); perr == nil {
			hint = client.NewBytesHint(n)
		}
	}
	return resp.Body, hint, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return cerrors.Wrap(cerrors.Io, "rate limiter wait", err)
	}
	return nil
}

func classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return cerrors.New(cerrors.NotFound, "404 Not Found")
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return cerrors.New(cerrors.AccessDenied, fmt.Sprintf("%d", status))
	case status == http.StatusRequestedRangeNotSatisfiable:
		return cerrors.New(cerrors.InvalidRange, "416 Requested Range Not Satisfiable")
	case status >= 200 && status < 300:
		return nil
	case status >= 500:
		return cerrors.New(cerrors.Remote, fmt.Sprintf("server error %d", status))
	default:
		return cerrors.New(cerrors.Other, fmt.Sprintf("unexpected status %d", status))
	}
}
