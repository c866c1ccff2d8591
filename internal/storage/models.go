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

package storage

import (
	"database/sql"

	"github.com/uptrace/bun"
)

// PathType discriminates placeholder entries. The numeric values are part
// of the on-disk format and must stay stable.
type PathType uint8

const (
	PathTypeFile PathType = iota
	PathTypePartialFolder
	PathTypeExpandedFolder
	PathTypePossibleTombstoneFolder
)

// String returns the name used in traces and CLI output.
func (pt PathType) String() string {
	switch pt {
	case PathTypeFile:
		return "File"
	case PathTypePartialFolder:
		return "PartialFolder"
	case PathTypeExpandedFolder:
		return "ExpandedFolder"
	case PathTypePossibleTombstoneFolder:
		return "PossibleTombstoneFolder"
	default:
		return "Unknown"
	}
}

// PlaceholderEntry is one virtual entry the projection layer has exposed
// to the OS. SHA is the 40-hex content fingerprint for files and empty for
// folder variants.
type PlaceholderEntry struct {
	Path     string
	PathType PathType
	SHA      string
}

// IsFolder reports whether the entry is any of the folder variants.
func (e PlaceholderEntry) IsFolder() bool {
	return e.PathType != PathTypeFile
}

// PlaceholderModel represents a row of the Placeholder table.
type PlaceholderModel struct {
	bun.BaseModel `bun:"table:Placeholder"`

	Path     string         `bun:"path,pk"`
	PathType uint8          `bun:"pathType,notnull"`
	SHA      sql.NullString `bun:"sha"`
}

// ToEntry converts a PlaceholderModel to a PlaceholderEntry.
// Folder rows always yield an empty SHA, even if the row carries one.
func (m *PlaceholderModel) ToEntry() PlaceholderEntry {
	entry := PlaceholderEntry{
		Path:     m.Path,
		PathType: PathType(m.PathType),
	}
	if entry.PathType == PathTypeFile && m.SHA.Valid {
		entry.SHA = m.SHA.String
	}
	return entry
}

// PlaceholderModelFromEntry converts a PlaceholderEntry to a row model.
// Folder entries are stored with a NULL sha regardless of input.
func PlaceholderModelFromEntry(entry PlaceholderEntry) *PlaceholderModel {
	m := &PlaceholderModel{
		Path:     entry.Path,
		PathType: uint8(entry.PathType),
	}
	if entry.PathType == PathTypeFile {
		m.SHA = sql.NullString{String: entry.SHA, Valid: true}
	}
	return m
}
