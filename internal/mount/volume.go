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
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// wellKnownVolumeParents lists directories whose immediate children are
// removable-volume mount points. A path under one of these resolves to
// that child even when the volume is currently absent, which is what lets
// the supervisor wait for an unplugged volume to appear.
var wellKnownVolumeParents = []string{"/Volumes", "/mnt", "/media"}

// VolumeRoot returns the volume root containing path: for paths under a
// well-known removable-volume parent, the mount-point child of that
// parent; otherwise the highest existing ancestor on the same device as
// the path's nearest existing ancestor, with "/" as the fallback.
func VolumeRoot(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "/"
	}

	for _, parent := range wellKnownVolumeParents {
		if rest, ok := strings.CutPrefix(abs, parent+"/"); ok && rest != "" {
			first, _, _ := strings.Cut(rest, "/")
			return filepath.Join(parent, first)
		}
	}

	return deviceRoot(abs)
}

// deviceRoot walks from the nearest existing ancestor of path toward the
// filesystem root and returns the highest directory on the same device.
func deviceRoot(path string) string {
	p := path
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "/"
		}
		p = parent
	}

	dev, ok := deviceID(p)
	if !ok {
		return p
	}
	for {
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		parentDev, ok := deviceID(parent)
		if !ok || parentDev != dev {
			return p
		}
		p = parent
	}
}

func deviceID(path string) (uint64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
