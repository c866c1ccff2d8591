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

// Package mount drives the automatic mounting of a user's registered
// enlistments once their volumes become reachable.
package mount

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	logrus "github.com/sirupsen/logrus"

	"gvfs/internal/trace"
	"gvfs/internal/watcher"
)

// AutoMountTitle is the notification title for automount outcomes.
const AutoMountTitle = "GVFS AutoMount"

// Config wires a Supervisor's collaborators.
type Config struct {
	SessionID int
	Registry  Registry
	Mounter   Mounter
	Sink      NotificationSink
	Tracer    *trace.Tracer

	// Watcher, when set, is also notified of absent volumes so a sweep
	// runs as soon as a volume appears instead of waiting out the retry
	// interval.
	Watcher *watcher.VolumeWatcher

	// RetryInterval overrides the standard 15 s retry period (tests).
	RetryInterval time.Duration

	// VolumeRootOf overrides platform volume-root resolution (tests).
	VolumeRootOf func(path string) string
}

// Supervisor mounts every active repository registered to one user as soon
// as its volume is reachable. Missing volumes are retried on a 15 s
// non-auto-repeating timer; a failed mount is reported and NOT retried,
// because a mount that failed on a present volume has a local fault that
// polling will not fix.
type Supervisor struct {
	mu sync.Mutex

	sessionID int
	userSID   string
	registry  Registry
	mounter   Mounter
	sink      NotificationSink
	tracer    *trace.Tracer
	volWatch  *watcher.VolumeWatcher

	timer        *time.Timer
	interval     time.Duration
	disposed     bool
	volumeRootOf func(string) string

	// watched tracks volume roots with a pending watcher callback so a
	// repeated sweep does not pile up registrations for the same volume.
	watched map[string]struct{}

	// activeMounts maps enlistment root to its mount id; a sweep never
	// mounts a root that is already active.
	activeMounts cmap.ConcurrentMap[string, string]
}

// NewSupervisor creates a supervisor for the current user's session. The
// owning user is taken from the mounter's identity.
func NewSupervisor(cfg Config) *Supervisor {
	interval := cfg.RetryInterval
	if interval == 0 {
		interval = watcher.PollInterval
	}
	volumeRootOf := cfg.VolumeRootOf
	if volumeRootOf == nil {
		volumeRootOf = VolumeRoot
	}

	return &Supervisor{
		sessionID:    cfg.SessionID,
		userSID:      cfg.Mounter.CurrentUserSID(),
		registry:     cfg.Registry,
		mounter:      cfg.Mounter,
		sink:         cfg.Sink,
		tracer:       cfg.Tracer,
		volWatch:     cfg.Watcher,
		interval:     interval,
		volumeRootOf: volumeRootOf,
		watched:      make(map[string]struct{}),
		activeMounts: cmap.New[string](),
	}
}

// Start runs one immediate mount sweep. Further sweeps happen on the retry
// timer or when a watched volume appears.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.mountAll()
}

// Dispose stops the retry timer and disposes the mounter. In-flight
// sweeps run to completion.
func (s *Supervisor) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mounter.Dispose()
}

// ActiveMounts returns the enlistment roots mounted by this supervisor.
func (s *Supervisor) ActiveMounts() []string {
	return s.activeMounts.Keys()
}

func (s *Supervisor) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.timer = nil
	s.mountAll()
}

// mountAll performs one sweep over the registry. Caller must hold s.mu.
func (s *Supervisor) mountAll() {
	repos, err := s.registry.TryGetActiveReposForUser(s.userSID)
	if err != nil {
		// Transient registry fault: log and leave the timer as it is;
		// the next external trigger retries.
		s.tracer.RelatedError("Could not query registered repos for %s: %v", s.userSID, err)
		return
	}

	allVolumesAvailable := true
	for _, repo := range repos {
		if s.activeMounts.Has(repo.EnlistmentRoot) {
			continue
		}

		volumeRoot := s.volumeRootOf(repo.EnlistmentRoot)
		if !dirExists(volumeRoot) {
			s.tracer.Event(logrus.InfoLevel, "VolumeUnavailable", trace.Metadata{
				"enlistment": repo.EnlistmentRoot,
				"volume":     volumeRoot,
			})
			allVolumesAvailable = false
			s.watchVolume(volumeRoot)
			continue
		}

		s.mount(repo)
	}

	if !allVolumesAvailable {
		s.armRetry()
	}
}

// mount invokes the mount factory for one repo and reports the outcome.
// Notifications are emitted synchronously before the next repo is swept.
func (s *Supervisor) mount(repo RepoRegistration) {
	if s.mounter.Mount(repo.EnlistmentRoot) {
		mountID := uuid.NewString()
		s.activeMounts.Set(repo.EnlistmentRoot, mountID)
		s.tracer.Event(logrus.InfoLevel, "RepoMounted", trace.Metadata{
			"enlistment": repo.EnlistmentRoot,
			"mount_id":   mountID,
		})
		s.sink.SendNotification(s.tracer, s.sessionID, Notification{
			Title:   AutoMountTitle,
			Message: repo.EnlistmentRoot + " has been mounted successfully",
		})
		return
	}

	s.tracer.Event(logrus.ErrorLevel, "RepoMountFailed", trace.Metadata{
		"enlistment": repo.EnlistmentRoot,
	})
	s.sink.SendNotification(s.tracer, s.sessionID, Notification{
		Title:   AutoMountTitle,
		Message: repo.EnlistmentRoot + " failed to mount",
	})
}

// watchVolume registers a one-shot sweep trigger for an absent volume.
// Caller must hold s.mu.
func (s *Supervisor) watchVolume(volumeRoot string) {
	if s.volWatch == nil {
		return
	}
	if _, pending := s.watched[volumeRoot]; pending {
		return
	}
	s.watched[volumeRoot] = struct{}{}
	// The callback runs on the watcher's poll thread with the watcher
	// lock held; sweep on a fresh goroutine so the supervisor never
	// takes its own lock inside the watcher's.
	s.volWatch.Register(volumeRoot, func() { go s.volumeAppeared(volumeRoot) })
}

func (s *Supervisor) volumeAppeared(volumeRoot string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watched, volumeRoot)
	if s.disposed {
		return
	}
	s.mountAll()
}

// armRetry schedules the next sweep if none is pending. Caller must hold
// s.mu. The timer is non-auto-repeating: each tick decides whether to
// rearm, so sweeps never overlap.
func (s *Supervisor) armRetry() {
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.interval, s.tick)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
