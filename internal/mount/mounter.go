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

package mount

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"gvfs/internal/trace"
	"gvfs/internal/util"
)

// mountMarkerDir is created inside the enlistment by the projection
// process once its filesystem is live.
const mountMarkerDir = ".gvfs"

// mountWaitTimeout bounds how long a sweep waits for one projection
// process to come up before reporting the mount failed.
const mountWaitTimeout = 10 * time.Second

// Mounter mounts enlistments. Mount reports success as a bool rather than
// an error: a failed mount is reported to the user and is not retried, so
// the supervisor only needs the outcome.
type Mounter interface {
	Mount(enlistmentRoot string) bool
	CurrentUserSID() string
	Dispose()
}

// ExecMounter mounts by spawning an external projection process, detached
// from the supervisor so it outlives the service session.
type ExecMounter struct {
	executable string
	args       []string
	tracer     *trace.Tracer
}

// NewExecMounter creates a mounter that runs `executable args...
// <enlistment-root>` for each mount.
func NewExecMounter(tracer *trace.Tracer, executable string, args ...string) *ExecMounter {
	return &ExecMounter{
		executable: executable,
		args:       args,
		tracer:     tracer,
	}
}

// Mount launches the projection process for enlistmentRoot and waits for
// it to report readiness via the enlistment's mount marker.
func (m *ExecMounter) Mount(enlistmentRoot string) bool {
	args := append(append([]string{}, m.args...), enlistmentRoot)
	proc, err := util.StartBackgroundProcess(m.executable, args, nil)
	if err != nil {
		m.tracer.RelatedError("Failed to launch %s for %s: %v", m.executable, enlistmentRoot, err)
		return false
	}

	m.tracer.RelatedInfo("Launched mount process %d for %s", proc.Pid, enlistmentRoot)
	// The spawned process owns the mount lifecycle from here.
	_ = proc.Release()

	marker := filepath.Join(enlistmentRoot, mountMarkerDir)
	err = util.PollUntil(context.Background(),
		util.PollConfig{Timeout: mountWaitTimeout, Interval: 500 * time.Millisecond},
		func() bool {
			info, statErr := os.Stat(marker)
			return statErr == nil && info.IsDir()
		})
	if err != nil {
		m.tracer.RelatedError("Mount of %s did not come up within %s", enlistmentRoot, mountWaitTimeout)
		return false
	}
	return true
}

// CurrentUserSID returns the current OS user's id.
func (m *ExecMounter) CurrentUserSID() string {
	u, err := user.Current()
	if err != nil {
		m.tracer.RelatedError("Failed to resolve current user: %v", err)
		return ""
	}
	return u.Uid
}

// Dispose releases the mounter. ExecMounter holds no resources; spawned
// processes are deliberately left running.
func (m *ExecMounter) Dispose() {}
