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
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"gvfs/internal/common"
	"gvfs/internal/util"
)

// PlaceholderCatalog is the durable index of every virtual entry the
// projection layer has exposed to the OS.
//
// Each operation checks out a pooled connection for its own scope and is
// individually atomic; the catalog holds no cursors or transactions across
// operation boundaries. There is no schema migration: a storage failure is
// fatal and propagates to the caller.
type PlaceholderCatalog struct {
	path string
	db   *sql.DB
	bun  *bun.DB
}

// OpenCatalog opens the placeholder store at path, creating the file and
// the Placeholder table if missing. Creation is idempotent.
func OpenCatalog(path string, dbCtx DBContext) (*PlaceholderCatalog, error) {
	db, err := sql.Open("libsql", BuildDSN(path, dbCtx))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open placeholder store: %v", common.ErrStorage, err)
	}

	// All PRAGMAs must be explicit — libsql ignores DSN-based
	// _pragma=value parameters.
	if err := applyPragmas(db, dbCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if err := execStatements(db, placeholderSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create Placeholder table: %v", common.ErrStorage, err)
	}

	return &PlaceholderCatalog{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
	}, nil
}

// Path returns the store file path.
func (c *PlaceholderCatalog) Path() string {
	return c.path
}

// Close closes the underlying connection pool.
func (c *PlaceholderCatalog) Close() error {
	return c.bun.Close()
}

// Count returns the exact number of placeholder rows.
func (c *PlaceholderCatalog) Count(ctx context.Context) (int, error) {
	count, err := c.bun.NewSelect().
		Model((*PlaceholderModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count placeholders: %w", err)
	}
	return count, nil
}

// GetAllEntries returns every placeholder row in a single scan, split into
// file entries and folder entries. Folder entries always carry an empty
// SHA. Order is unspecified.
func (c *PlaceholderCatalog) GetAllEntries(ctx context.Context) (files, folders []PlaceholderEntry, err error) {
	var models []PlaceholderModel
	if err := c.bun.NewSelect().Model(&models).Scan(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to scan placeholders: %w", err)
	}

	for i := range models {
		entry := models[i].ToEntry()
		if entry.IsFolder() {
			folders = append(folders, entry)
		} else {
			files = append(files, entry)
		}
	}
	return files, folders, nil
}

// GetAllFilePaths returns the path of every file-typed placeholder.
func (c *PlaceholderCatalog) GetAllFilePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := c.bun.NewSelect().
		Model((*PlaceholderModel)(nil)).
		Column("path").
		Where("pathType = ?", uint8(PathTypeFile)).
		Scan(ctx, &paths)
	if err != nil {
		return nil, fmt.Errorf("failed to list file placeholders: %w", err)
	}
	return paths, nil
}

// Add inserts or replaces the row for entry.Path. A second Add for the
// same path overwrites type and sha atomically. Folder entries are stored
// with a NULL sha regardless of input. Retries transient "database is
// locked" errors that occur while a projection process has the store open.
func (c *PlaceholderCatalog) Add(ctx context.Context, entry PlaceholderEntry) error {
	err := util.Retry(ctx,
		func() error {
			_, err := c.bun.NewInsert().
				Model(PlaceholderModelFromEntry(entry)).
				On("CONFLICT (path) DO UPDATE").
				Set("pathType = EXCLUDED.pathType").
				Set("sha = EXCLUDED.sha").
				Exec(ctx)
			return err
		},
		util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("failed to upsert placeholder %q: %w", entry.Path, err)
	}
	return nil
}

// AddFile records a file placeholder with its content fingerprint.
// The sha is treated as opaque; it is not validated here.
func (c *PlaceholderCatalog) AddFile(ctx context.Context, path, sha string) error {
	return c.Add(ctx, PlaceholderEntry{Path: path, PathType: PathTypeFile, SHA: sha})
}

// AddPartialFolder records a folder the OS has seen but not enumerated.
func (c *PlaceholderCatalog) AddPartialFolder(ctx context.Context, path string) error {
	return c.Add(ctx, PlaceholderEntry{Path: path, PathType: PathTypePartialFolder})
}

// AddExpandedFolder records a folder the OS has fully enumerated.
func (c *PlaceholderCatalog) AddExpandedFolder(ctx context.Context, path string) error {
	return c.Add(ctx, PlaceholderEntry{Path: path, PathType: PathTypeExpandedFolder})
}

// AddPossibleTombstoneFolder records a folder whose deletion the OS has
// signalled but the projection layer has not finalized.
func (c *PlaceholderCatalog) AddPossibleTombstoneFolder(ctx context.Context, path string) error {
	return c.Add(ctx, PlaceholderEntry{Path: path, PathType: PathTypePossibleTombstoneFolder})
}

// Remove deletes the row for path. Removing an absent path is not an error.
func (c *PlaceholderCatalog) Remove(ctx context.Context, path string) error {
	err := util.Retry(ctx,
		func() error {
			_, err := c.bun.NewDelete().
				Model((*PlaceholderModel)(nil)).
				Where("path = ?", path).
				Exec(ctx)
			return err
		},
		util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return fmt.Errorf("failed to remove placeholder %q: %w", path, err)
	}
	return nil
}
