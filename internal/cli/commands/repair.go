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
	"path/filepath"

	"github.com/spf13/cobra"

	"gvfs/internal/repair"
	"gvfs/internal/trace"
)

var repairCmd = &cobra.Command{
	Use:   "repair <enlistment-root>",
	Short: "Diagnose and repair damaged refs in an enlistment",
	Long: `Scans the enlistment's git refs for corruption and, with
--confirm, reconstructs damaged refs from their reflogs.

Repair runs offline: the enlistment must not be mounted, and repair is
refused while a rebase, merge, bisect, cherry-pick, or revert is in
progress. Without --confirm only the diagnosis is printed.

Examples:
  gvfs repair ~/src/bigrepo
  gvfs repair ~/src/bigrepo --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

var repairConfirm bool

func init() {
	rootCmd.AddCommand(repairCmd)
	repairCmd.Flags().BoolVar(&repairConfirm, "confirm", false,
		"Actually repair; default is diagnose only")
}

func runRepair(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve enlistment path: %w", err)
	}

	engine, err := repair.Open(root, trace.New("Repair"))
	if err != nil {
		return err
	}
	defer engine.Close()

	var messages []string
	result := engine.HasIssue(&messages)
	printMessages(cmd, messages)

	switch result {
	case repair.IssueNone:
		cmd.Println("No ref issues found")
		return nil

	case repair.IssueCantFix:
		return fmt.Errorf("refs are damaged but cannot be repaired right now")

	default:
		if !repairConfirm {
			cmd.Println("Damaged refs found. Re-run with --confirm to repair them from the reflog.")
			return nil
		}
	}

	messages = nil
	if engine.TryFix(&messages) == repair.FixFailure {
		printMessages(cmd, messages)
		return fmt.Errorf("repair did not fix all refs")
	}
	printMessages(cmd, messages)
	cmd.Println("All damaged refs repaired")
	return nil
}

func printMessages(cmd *cobra.Command, messages []string) {
	for _, message := range messages {
		cmd.Println(message)
	}
}
