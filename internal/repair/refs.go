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

// Package repair diagnoses and repairs malformed git refs in an
// enlistment, operating directly on the on-disk files because the repo may
// be too corrupted for git itself to start.
package repair

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Git layout inside the enlistment root.
const (
	gitDirName      = ".git"
	headRefName     = "HEAD"
	refsHeadsPrefix = "refs/heads"
	logsDirName     = "logs"
)

// symbolicRefPrefix marks a symbolic ref file ("ref: refs/heads/main").
const symbolicRefPrefix = "ref: refs/"

var shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsValidRefContents reports whether a ref file's contents are well
// formed: after trimming trailing whitespace, either a symbolic ref
// (case-insensitive "ref: refs/" prefix) or a 40-char lowercase-hex SHA-1.
func IsValidRefContents(contents string) bool {
	trimmed := strings.TrimRightFunc(contents, unicode.IsSpace)
	if len(trimmed) >= len(symbolicRefPrefix) &&
		strings.EqualFold(trimmed[:len(symbolicRefPrefix)], symbolicRefPrefix) {
		return true
	}
	return shaPattern.MatchString(trimmed)
}

// RefLogEntry is one parsed line of a reflog file. Only the post-operation
// SHA is needed to reconstruct a ref.
type RefLogEntry struct {
	SourceSHA string
	TargetSHA string
}

// ParseRefLogLine parses a reflog line of the form
// "<old-sha> <new-sha> <ident> <timestamp> <tz>\t<message>".
func ParseRefLogLine(line string) (RefLogEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return RefLogEntry{}, fmt.Errorf("malformed reflog line: %q", line)
	}
	if !shaPattern.MatchString(fields[0]) || !shaPattern.MatchString(fields[1]) {
		return RefLogEntry{}, fmt.Errorf("malformed reflog shas: %q", line)
	}
	return RefLogEntry{SourceSHA: fields[0], TargetSHA: fields[1]}, nil
}

// lastLine returns the final non-empty line of data.
func lastLine(data []byte) string {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
