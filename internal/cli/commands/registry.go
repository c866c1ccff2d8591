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
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"gvfs/internal/mount"
	"gvfs/internal/service"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage registered enlistments",
}

var registryAddCmd = &cobra.Command{
	Use:   "add <enlistment-root>",
	Short: "Register an enlistment for automounting",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryAdd,
}

var registryRmCmd = &cobra.Command{
	Use:   "rm <enlistment-root>",
	Short: "Unregister an enlistment",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryRm,
}

var registryLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List registered enlistments",
	Args:  cobra.NoArgs,
	RunE:  runRegistryLs,
}

var registryOwner string

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryRmCmd)
	registryCmd.AddCommand(registryLsCmd)
	registryAddCmd.Flags().StringVar(&registryOwner, "owner", "",
		"Owning user id (default: current user)")
}

func openRegistry() (*mount.FileRegistry, error) {
	if err := service.EnsureConfigDir(); err != nil {
		return nil, err
	}
	return mount.NewFileRegistry(service.RegistryPath()), nil
}

func runRegistryAdd(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve enlistment path: %w", err)
	}

	owner := registryOwner
	if owner == "" {
		u, err := user.Current()
		if err != nil {
			return fmt.Errorf("failed to resolve current user: %w", err)
		}
		owner = u.Uid
	}

	registry, err := openRegistry()
	if err != nil {
		return err
	}
	if err := registry.Add(root, owner); err != nil {
		return err
	}
	cmd.Printf("Registered %s for user %s\n", root, owner)
	return nil
}

func runRegistryRm(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve enlistment path: %w", err)
	}

	registry, err := openRegistry()
	if err != nil {
		return err
	}
	if err := registry.Remove(root); err != nil {
		return err
	}
	cmd.Printf("Unregistered %s\n", root)
	return nil
}

func runRegistryLs(cmd *cobra.Command, args []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	repos, err := registry.List()
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		cmd.Println("No enlistments registered")
		return nil
	}
	for _, repo := range repos {
		state := "active"
		if !repo.IsActive {
			state = "inactive"
		}
		cmd.Printf("%-8s %-8s %s\n", state, repo.OwnerSID, repo.EnlistmentRoot)
	}
	return nil
}
