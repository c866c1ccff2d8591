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
	"github.com/spf13/cobra"

	"gvfs/internal/service"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the per-session automount service",
}

var serviceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automount service in the foreground",
	Long: `Runs the automount service for the current login session. The
service mounts every registered repository once its volume becomes
reachable, retrying every 15 seconds while volumes are missing.`,
	Args: cobra.NoArgs,
	RunE: runService,
}

var serviceSessionID int

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceRunCmd)
	serviceRunCmd.Flags().IntVar(&serviceSessionID, "session-id", 0,
		"Login session id used in notifications")
}

func runService(cmd *cobra.Command, args []string) error {
	svc := service.New()
	svc.SessionID = serviceSessionID
	svc.LogLevel = logLevel
	return svc.Run()
}
