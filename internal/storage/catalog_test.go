package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCatalog(t *testing.T) *PlaceholderCatalog {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "placeholders.db")
	catalog, err := OpenCatalog(dbPath, DBContextDefault)
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func TestCatalogRoundTrip(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	sha := strings.Repeat("0", 40)
	if err := catalog.AddFile(ctx, "a/b.txt", sha); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := catalog.AddPartialFolder(ctx, "a"); err != nil {
		t.Fatalf("AddPartialFolder failed: %v", err)
	}
	if err := catalog.AddExpandedFolder(ctx, "a"); err != nil {
		t.Fatalf("AddExpandedFolder failed: %v", err)
	}

	count, err := catalog.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	paths, err := catalog.GetAllFilePaths(ctx)
	if err != nil {
		t.Fatalf("GetAllFilePaths failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "a/b.txt" {
		t.Errorf("Expected file paths [a/b.txt], got %v", paths)
	}

	files, folders, err := catalog.GetAllEntries(ctx)
	if err != nil {
		t.Fatalf("GetAllEntries failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file entry, got %d", len(files))
	}
	if files[0].Path != "a/b.txt" || files[0].SHA != sha {
		t.Errorf("Unexpected file entry: %+v", files[0])
	}
	if len(folders) != 1 {
		t.Fatalf("Expected 1 folder entry, got %d", len(folders))
	}
	if folders[0].Path != "a" || folders[0].PathType != PathTypeExpandedFolder {
		t.Errorf("Unexpected folder entry: %+v", folders[0])
	}
	if folders[0].SHA != "" {
		t.Errorf("Folder entry must have empty sha, got %q", folders[0].SHA)
	}
}

func TestCatalogReplaceSemantics(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	first := strings.Repeat("a", 40)
	second := strings.Repeat("b", 40)

	if err := catalog.AddFile(ctx, "p", first); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := catalog.AddFile(ctx, "p", second); err != nil {
		t.Fatalf("AddFile (replace) failed: %v", err)
	}

	count, err := catalog.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1 after replace, got %d", count)
	}

	files, _, err := catalog.GetAllEntries(ctx)
	if err != nil {
		t.Fatalf("GetAllEntries failed: %v", err)
	}
	if len(files) != 1 || files[0].SHA != second {
		t.Errorf("Expected sha %q, got %+v", second, files)
	}
}

func TestCatalogFolderShaIsNull(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	// A folder-typed Add must discard any provided sha on disk.
	err := catalog.Add(ctx, PlaceholderEntry{
		Path:     "dir",
		PathType: PathTypePossibleTombstoneFolder,
		SHA:      strings.Repeat("c", 40),
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Read the raw row to make sure the sha is NULL on disk, not just
	// masked by the entry conversion.
	var sha interface{}
	row := catalog.db.QueryRow(`SELECT sha FROM Placeholder WHERE path = ?`, "dir")
	if err := row.Scan(&sha); err != nil {
		t.Fatalf("Raw scan failed: %v", err)
	}
	if sha != nil {
		t.Errorf("Expected NULL sha for folder row, got %v", sha)
	}
}

func TestCatalogFilePathListing(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	want := map[string]bool{
		"src/main.go": true,
		"src/util.go": true,
		"docs/readme": true,
	}
	for path := range want {
		if err := catalog.AddFile(ctx, path, strings.Repeat("1", 40)); err != nil {
			t.Fatalf("AddFile(%q) failed: %v", path, err)
		}
	}
	if err := catalog.AddExpandedFolder(ctx, "src"); err != nil {
		t.Fatalf("AddExpandedFolder failed: %v", err)
	}
	if err := catalog.AddPartialFolder(ctx, "docs"); err != nil {
		t.Fatalf("AddPartialFolder failed: %v", err)
	}

	paths, err := catalog.GetAllFilePaths(ctx)
	if err != nil {
		t.Fatalf("GetAllFilePaths failed: %v", err)
	}
	if len(paths) != len(want) {
		t.Fatalf("Expected %d file paths, got %d: %v", len(want), len(paths), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("Unexpected file path %q", p)
		}
	}
}

func TestCatalogRemove(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	if err := catalog.AddFile(ctx, "gone.txt", strings.Repeat("d", 40)); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := catalog.Remove(ctx, "gone.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	count, err := catalog.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty catalog after remove, got %d rows", count)
	}

	// Removing an absent path is silent.
	if err := catalog.Remove(ctx, "never-existed"); err != nil {
		t.Errorf("Remove of absent path should be silent, got %v", err)
	}
}

func TestCatalogReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "placeholders.db")
	ctx := context.Background()

	catalog, err := OpenCatalog(dbPath, DBContextDefault)
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	if err := catalog.AddFile(ctx, "keep.txt", strings.Repeat("e", 40)); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := catalog.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening must not recreate or clear the table.
	reopened, err := OpenCatalog(dbPath, DBContextCLI)
	if err != nil {
		t.Fatalf("Failed to reopen catalog: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row after reopen, got %d", count)
	}
}
