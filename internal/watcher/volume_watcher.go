// Copyright 2024 GVFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watcher provides one-shot notification that a volume root has
// become reachable.
package watcher

import (
	"os"
	"sync"
	"time"

	"gvfs/internal/trace"
)

// PollInterval is how often registered volume paths are checked for
// existence. The mount supervisor uses the same constant for its retry
// sweeps.
const PollInterval = 15 * time.Second

// VolumeWatcher polls for registered volume paths to appear and fires the
// callbacks registered for each path exactly once, in registration order.
//
// The poll timer is non-auto-repeating: each tick decides whether to
// schedule the next, so ticks never overlap. One mutex guards the binding
// map and the timer for the whole tick body.
type VolumeWatcher struct {
	mu       sync.Mutex
	bindings map[string][]func()
	timer    *time.Timer
	interval time.Duration
	disposed bool
	tracer   *trace.Tracer
}

// New creates a watcher polling at the standard interval.
func New(tracer *trace.Tracer) *VolumeWatcher {
	return NewWithInterval(tracer, PollInterval)
}

// NewWithInterval creates a watcher with a custom poll interval.
func NewWithInterval(tracer *trace.Tracer, interval time.Duration) *VolumeWatcher {
	return &VolumeWatcher{
		bindings: make(map[string][]func()),
		interval: interval,
		tracer:   tracer,
	}
}

// Register appends callback to the binding for volumePath and starts the
// poll timer if it is idle. Registration never fails; duplicate
// registrations for the same path accumulate and all fire together, in
// registration order, the first time the path is observed to exist. Each
// callback is invoked at most once.
func (w *VolumeWatcher) Register(volumePath string, callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return
	}

	w.bindings[volumePath] = append(w.bindings[volumePath], callback)
	if w.timer == nil {
		w.arm()
	}
}

// Dispose stops the timer and drops all pending callbacks. No callback
// fires after Dispose returns; a tick already executing has already taken
// its callbacks out of the binding map and runs to completion.
func (w *VolumeWatcher) Dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disposed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.bindings = make(map[string][]func())
}

// arm schedules the next tick. Caller must hold w.mu.
func (w *VolumeWatcher) arm() {
	w.timer = time.AfterFunc(w.interval, w.tick)
}

func (w *VolumeWatcher) tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return
	}
	w.timer = nil

	// Snapshot paths before the sweep. Callbacks run with w.mu held, so a
	// callback must not call Register on this watcher.
	paths := make([]string, 0, len(w.bindings))
	for path := range w.bindings {
		paths = append(paths, path)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		// Remove the binding before firing so a failing callback can
		// never leave it half-removed.
		callbacks := w.bindings[path]
		delete(w.bindings, path)

		w.tracer.RelatedInfo("Volume %s is available, notifying %d listener(s)", path, len(callbacks))
		for _, callback := range callbacks {
			w.fire(path, callback)
		}
	}

	if len(w.bindings) > 0 {
		w.arm()
	}
}

// fire invokes one callback, recovering panics so the remaining callbacks
// for the volume still run.
func (w *VolumeWatcher) fire(path string, callback func()) {
	defer func() {
		if r := recover(); r != nil {
			w.tracer.RelatedError("Volume callback for %s panicked: %v", path, r)
		}
	}()
	callback()
}
