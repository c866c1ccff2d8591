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

// Package service hosts the per-login-session automount supervisor.
package service

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"

	"gvfs/internal/mount"
	"gvfs/internal/storage"
	"gvfs/internal/trace"
	"gvfs/internal/watcher"
)

// Service wires the volume watcher and mount supervisor for one login
// session and runs until stopped.
type Service struct {
	// SessionID identifies the login session in notifications.
	SessionID int

	// LogLevel sets the logging level: trace, debug, info, warn, off
	// (default: off)
	LogLevel string

	logFile *os.File
	lock    *flock.Flock
	stopCh  chan struct{}
}

// New creates a new service instance
func New() *Service {
	return &Service{stopCh: make(chan struct{})}
}

// Run starts the service and blocks until stopped by a signal or Stop.
func (s *Service) Run() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	// Load global settings and set busy_timeout values
	settings, err := LoadSettings()
	if err != nil {
		settings = DefaultSettings()
	}
	storage.SetConfigBusyTimeouts(settings.ProjectionBusyTimeout, settings.CLIBusyTimeout)

	// One automount service per user session
	s.lock = flock.New(LockPath())
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another gvfs service instance is already running")
	}
	defer s.lock.Unlock()

	if s.LogLevel != "" && s.LogLevel != "off" {
		logFile, err := os.OpenFile(LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		s.logFile = logFile
		defer logFile.Close()
		trace.Configure(s.LogLevel, logFile)
	}

	tracer := trace.New("Service")
	activity := tracer.StartActivity("ServiceSession", trace.Metadata{
		"session_id": s.SessionID,
		"pid":        os.Getpid(),
	})
	defer activity.Stop(nil)

	volWatch := watcher.New(activity.Tracer())
	defer volWatch.Dispose()

	supervisor := mount.NewSupervisor(mount.Config{
		SessionID: s.SessionID,
		Registry:  mount.NewFileRegistry(RegistryPath()),
		Mounter:   mount.NewExecMounter(activity.Tracer(), settings.MountCommand, settings.MountArgs...),
		Sink:      mount.TraceNotificationSink{},
		Tracer:    activity.Tracer(),
		Watcher:   volWatch,
	})
	defer supervisor.Dispose()

	supervisor.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		activity.Tracer().RelatedInfo("Received signal %v, shutting down", sig)
	case <-s.stopCh:
		activity.Tracer().RelatedInfo("Stop requested, shutting down")
	}
	return nil
}

// Stop requests a graceful shutdown of a running service.
func (s *Service) Stop() {
	close(s.stopCh)
}
