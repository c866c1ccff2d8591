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

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gvfs/internal/common"
	"gvfs/internal/exclude"
	"gvfs/internal/storage"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect a placeholder catalog",
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show placeholder counts by type",
	Args:  cobra.NoArgs,
	RunE:  runCatalogStats,
}

var catalogLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List placeholder entries",
	Args:  cobra.NoArgs,
	RunE:  runCatalogLs,
}

var catalogCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List file placeholders matching an exclude-pattern file",
	Long: `Lists file placeholders whose paths match a gitignore-syntax
pattern file, such as the enlistment's always-exclude list. Matching
files are candidates for dehydration.`,
	Args: cobra.NoArgs,
	RunE: runCatalogCandidates,
}

var (
	catalogPath     string
	catalogPatterns string
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogStatsCmd)
	catalogCmd.AddCommand(catalogLsCmd)
	catalogCmd.AddCommand(catalogCandidatesCmd)
	catalogCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "",
		"Path to the placeholder catalog database (required)")
	catalogCmd.MarkPersistentFlagRequired("catalog")
	catalogCandidatesCmd.Flags().StringVarP(&catalogPatterns, "patterns", "p", "",
		"Path to the gitignore-syntax pattern file (required)")
	catalogCandidatesCmd.MarkFlagRequired("patterns")
}

func openCatalogArg() (*storage.PlaceholderCatalog, error) {
	if _, err := os.Stat(catalogPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog %s: %w", catalogPath, common.ErrNotFound)
	}
	return storage.OpenCatalog(catalogPath, storage.DBContextCLI)
}

func runCatalogStats(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalogArg()
	if err != nil {
		return err
	}
	defer catalog.Close()

	ctx := cmd.Context()
	count, err := catalog.Count(ctx)
	if err != nil {
		return err
	}
	files, folders, err := catalog.GetAllEntries(ctx)
	if err != nil {
		return err
	}

	byType := make(map[storage.PathType]int)
	for _, entry := range folders {
		byType[entry.PathType]++
	}

	cmd.Printf("Placeholders: %d\n", count)
	cmd.Printf("  Files:                    %d\n", len(files))
	cmd.Printf("  Partial folders:          %d\n", byType[storage.PathTypePartialFolder])
	cmd.Printf("  Expanded folders:         %d\n", byType[storage.PathTypeExpandedFolder])
	cmd.Printf("  Tombstone-candidate dirs: %d\n", byType[storage.PathTypePossibleTombstoneFolder])
	return nil
}

func runCatalogLs(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalogArg()
	if err != nil {
		return err
	}
	defer catalog.Close()

	files, folders, err := catalog.GetAllEntries(cmd.Context())
	if err != nil {
		return err
	}

	for _, entry := range folders {
		cmd.Printf("%-24s %s\n", entry.PathType, entry.Path)
	}
	for _, entry := range files {
		cmd.Printf("%-24s %s  %s\n", entry.PathType, entry.SHA, entry.Path)
	}
	return nil
}

func runCatalogCandidates(cmd *cobra.Command, args []string) error {
	catalog, err := openCatalogArg()
	if err != nil {
		return err
	}
	defer catalog.Close()

	filter, err := exclude.LoadFile(catalogPatterns)
	if err != nil {
		return err
	}

	paths, err := catalog.GetAllFilePaths(cmd.Context())
	if err != nil {
		return err
	}

	for _, path := range exclude.DehydrateCandidates(paths, filter) {
		cmd.Println(path)
	}
	return nil
}
