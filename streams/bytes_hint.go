// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package streams

import "github.com/medwards/condow/client"

// BytesHint is an alias of client.BytesHint: the two packages need the
// same type, and client is the lower layer, so streams reuses it rather
// than defining a parallel copy that would need converting at every
// Client.Fetch call site.
type BytesHint = client.BytesHint

// NewBytesHint, NewBytesHintAtMost and NewBytesHintUnknown mirror the
// client package constructors so streams callers need not import both
// packages for a single hint value.
var (
	NewBytesHint        = client.NewBytesHint
	NewBytesHintAtMost  = client.NewBytesHintAtMost
	NewBytesHintUnknown = client.NewBytesHintUnknown
)
