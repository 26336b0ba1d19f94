// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package machinery implements the Sequential Worker, Concurrent
// Dispatcher, and the Kill Switch / completion accounting that ties
// workers' lifetimes to a single download's success or failure signal.
package machinery

import "sync/atomic"

// KillSwitch is a single write-once-true flag shared by every worker of
// one download. Arming it asks every worker to stop enqueuing new work
// and unwind as soon as convenient; it is never un-armed.
type KillSwitch struct {
	armed atomic.Bool
}

// Arm sets the switch. Safe to call concurrently and repeatedly.
func (k *KillSwitch) Arm() {
	k.armed.Store(true)
}

// IsArmed reports whether Arm has been called.
func (k *KillSwitch) IsArmed() bool {
	return k.armed.Load()
}
