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

package repair

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
)

// RefFamily enumerates one namespace of refs as full symbolic names
// ("HEAD", "refs/heads/main"). The engine validates and repairs each ref
// a family yields.
type RefFamily interface {
	Name() string
	EnumerateRefs() ([]string, error)
}

// HeadFamily yields the single symbolic ref HEAD.
type HeadFamily struct{}

func (HeadFamily) Name() string { return "HEAD" }

func (HeadFamily) EnumerateRefs() ([]string, error) {
	return []string{headRefName}, nil
}

// LocalBranchFamily enumerates every file under .git/refs/heads,
// recursively, as refs/heads/<relative> with forward slashes.
type LocalBranchFamily struct {
	fs billy.Filesystem
}

// NewLocalBranchFamily creates a family over the filesystem rooted at the
// enlistment.
func NewLocalBranchFamily(fs billy.Filesystem) LocalBranchFamily {
	return LocalBranchFamily{fs: fs}
}

func (LocalBranchFamily) Name() string { return "local branches" }

func (f LocalBranchFamily) EnumerateRefs() ([]string, error) {
	headsDir := f.fs.Join(gitDirName, refsHeadsPrefix)
	if _, err := f.fs.Stat(headsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []string
	err := billyutil.Walk(f.fs, headsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(headsDir, path)
		if relErr != nil {
			return relErr
		}
		refs = append(refs, refsHeadsPrefix+"/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// refFilePath maps a full symbolic ref to its path under the enlistment.
func refFilePath(fs billy.Filesystem, ref string) string {
	return fs.Join(gitDirName, filepath.FromSlash(ref))
}

// refLogPath maps a full symbolic ref to its reflog path.
func refLogPath(fs billy.Filesystem, ref string) string {
	return fs.Join(gitDirName, logsDirName, filepath.FromSlash(ref))
}

// displayPath renders a ref file path for user-visible messages.
func displayPath(ref string) string {
	return gitDirName + "/" + strings.TrimPrefix(ref, "/")
}
