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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"

	"gvfs/internal/common"
	"gvfs/internal/trace"
)

// IssueResult classifies the outcome of a diagnosis pass.
type IssueResult int

const (
	// IssueNone: every ref is well formed.
	IssueNone IssueResult = iota
	// IssueFixable: bad refs exist and repair may be attempted.
	IssueFixable
	// IssueCantFix: bad refs exist but an in-progress git operation
	// forbids repair. TryFix must not be called.
	IssueCantFix
)

// FixResult classifies the outcome of a repair pass.
type FixResult int

const (
	FixSuccess FixResult = iota
	FixFailure
)

// repairInterlocks are the in-progress git operations that forbid repair,
// detected by existence of the named path under .git.
var repairInterlocks = []struct {
	path string
	op   string
}{
	{"rebase-apply", "rebase"},
	{"MERGE_HEAD", "merge"},
	{"BISECT_START", "bisect"},
	{"CHERRY_PICK_HEAD", "cherry-pick"},
	{"REVERT_HEAD", "revert"},
}

// lockFileName guards against a concurrent projection or repair process.
const lockFileName = "gvfs_repair.lock"

// Engine validates refs yielded by its families and reconstructs damaged
// ones from reflog tails. The engine is single-threaded and offline: no
// concurrent writer to .git is permitted during its run.
type Engine struct {
	fs       billy.Filesystem
	families []RefFamily
	tracer   *trace.Tracer
	lock     *flock.Flock
}

// NewEngine creates an engine over an already-rooted filesystem. The
// caller is responsible for exclusivity; use Open for on-disk enlistments.
func NewEngine(fs billy.Filesystem, tracer *trace.Tracer, families ...RefFamily) *Engine {
	if len(families) == 0 {
		families = []RefFamily{HeadFamily{}, NewLocalBranchFamily(fs)}
	}
	return &Engine{fs: fs, families: families, tracer: tracer}
}

// Open creates an engine for the enlistment at root, taking an exclusive
// lock under .git to enforce the offline contract. Close releases it.
func Open(root string, tracer *trace.Tracer) (*Engine, error) {
	gitDir := filepath.Join(root, gitDirName)
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", common.ErrNotEnlistment, root)
	}

	lock := flock.New(filepath.Join(gitDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock enlistment: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", common.ErrRepairLocked, root)
	}

	fs := osfs.New(root)
	engine := NewEngine(fs, tracer)
	engine.lock = lock
	return engine, nil
}

// Close releases the enlistment lock, if one was taken.
func (e *Engine) Close() error {
	if e.lock == nil {
		return nil
	}
	return e.lock.Unlock()
}

// HasIssue reads and validates every ref from every family, appending a
// diagnostic line per bad ref to messages. It returns IssueNone when all
// refs are valid, IssueCantFix when bad refs exist but a repair interlock
// is present, and IssueFixable otherwise. IO failures count as bad refs
// rather than aborting the scan.
func (e *Engine) HasIssue(messages *[]string) IssueResult {
	activity := e.tracer.StartActivity("CheckRefs", nil)
	defer activity.Stop(nil)

	badRefs := 0
	for _, family := range e.families {
		refs, err := family.EnumerateRefs()
		if err != nil {
			*messages = append(*messages,
				fmt.Sprintf("Could not enumerate %s: %v", family.Name(), err))
			badRefs++
			continue
		}

		for _, ref := range refs {
			path := refFilePath(e.fs, ref)
			data, err := billyutil.ReadFile(e.fs, path)
			if err != nil {
				*messages = append(*messages,
					fmt.Sprintf("Could not read '%s': %v", displayPath(ref), err))
				badRefs++
				continue
			}
			if !IsValidRefContents(string(data)) {
				*messages = append(*messages,
					fmt.Sprintf("Invalid contents found in '%s': %s",
						displayPath(ref), strings.TrimSpace(string(data))))
				badRefs++
			}
		}
	}

	if badRefs == 0 {
		return IssueNone
	}

	activity.Tracer().RelatedWarning("Found %d bad ref(s)", badRefs)

	blocked := false
	for _, interlock := range e.repairBlockers() {
		*messages = append(*messages,
			fmt.Sprintf("Can't repair while a %s operation is in progress", interlock))
		blocked = true
	}
	if blocked {
		return IssueCantFix
	}
	return IssueFixable
}

// TryFix rewrites every ref that still fails validation from the tail of
// its reflog. Individual successful repairs persist regardless of later
// failures; the aggregate result is FixFailure if any ref could not be
// repaired. When HasIssue returned IssueNone this is a no-op success;
// when it returned IssueCantFix the caller must not invoke TryFix.
func (e *Engine) TryFix(messages *[]string) FixResult {
	activity := e.tracer.StartActivity("FixRefs", nil)
	defer activity.Stop(nil)

	failed := 0
	for _, family := range e.families {
		refs, err := family.EnumerateRefs()
		if err != nil {
			*messages = append(*messages,
				fmt.Sprintf("Could not enumerate %s: %v", family.Name(), err))
			failed++
			continue
		}

		for _, ref := range refs {
			data, err := billyutil.ReadFile(e.fs, refFilePath(e.fs, ref))
			if err == nil && IsValidRefContents(string(data)) {
				continue
			}
			if !e.tryWriteRefFromLog(ref, messages) {
				failed++
			}
		}
	}

	if failed > 0 {
		*messages = append(*messages,
			fmt.Sprintf("Not all references could be fixed. Failed to fix %d references.", failed))
		return FixFailure
	}
	return FixSuccess
}

// tryWriteRefFromLog reconstructs one ref from the last line of its
// reflog, overwriting .git/<ref> with the post-operation SHA.
func (e *Engine) tryWriteRefFromLog(ref string, messages *[]string) bool {
	logData, err := billyutil.ReadFile(e.fs, refLogPath(e.fs, ref))
	if err != nil {
		*messages = append(*messages,
			fmt.Sprintf("Could not find reflog for '%s': %v", ref, err))
		return false
	}

	entry, err := ParseRefLogLine(lastLine(logData))
	if err != nil {
		*messages = append(*messages,
			fmt.Sprintf("Could not parse reflog for '%s': %v", ref, err))
		return false
	}

	refPath := refFilePath(e.fs, ref)
	if err := billyutil.WriteFile(e.fs, refPath, []byte(entry.TargetSHA+"\n"), 0644); err != nil {
		*messages = append(*messages,
			fmt.Sprintf("Could not write '%s': %v", displayPath(ref), err))
		return false
	}

	e.tracer.RelatedInfo("Repaired %s from reflog (now %s)", ref, entry.TargetSHA)
	*messages = append(*messages,
		fmt.Sprintf("Repaired '%s' from the reflog", ref))
	return true
}

// repairBlockers returns the names of in-progress git operations that
// forbid repair, in a stable order.
func (e *Engine) repairBlockers() []string {
	var ops []string
	for _, interlock := range repairInterlocks {
		if _, err := e.fs.Stat(e.fs.Join(gitDirName, interlock.path)); err == nil {
			ops = append(ops, interlock.op)
		}
	}
	return ops
}
