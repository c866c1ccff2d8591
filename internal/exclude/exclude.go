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

// Package exclude classifies placeholder paths against gitignore-syntax
// pattern files, such as the always-exclude list the projection layer
// maintains. Matching paths are dehydration candidates.
package exclude

import (
	"fmt"
	"os"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"gvfs/internal/common"
)

// Filter matches repo-relative paths against a compiled pattern set.
type Filter struct {
	matcher *ignore.GitIgnore
}

// CompileLines builds a filter from gitignore-syntax pattern lines.
func CompileLines(lines ...string) *Filter {
	return &Filter{matcher: ignore.CompileIgnoreLines(lines...)}
}

// LoadFile builds a filter from a pattern file.
func LoadFile(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclude patterns: %w", err)
	}
	return CompileLines(strings.Split(string(data), "\n")...), nil
}

// Matches reports whether the repo-relative path matches the pattern set.
func (f *Filter) Matches(relPath string) bool {
	if f.matcher == nil {
		return false
	}
	return f.matcher.MatchesPath(common.NormalizePath(relPath))
}

// DehydrateCandidates returns the subset of paths matching the filter,
// preserving input order.
func DehydrateCandidates(paths []string, f *Filter) []string {
	var candidates []string
	for _, path := range paths {
		if f.Matches(path) {
			candidates = append(candidates, path)
		}
	}
	return candidates
}
