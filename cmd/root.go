// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// configFile overrides the config.yaml search path when set.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "mediarunner",
	Short: "Ingest archival media into the catalog",
	Long: `Validate, inspect, transcode and catalog media files deposited in the ingest
bucket. Failed deposits are quarantined and the depositor is notified.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (default ./config.yaml or /etc/mediarunner/config.yaml)")
}

// Execute runs the command named on the command line. A failing command
// exits non-zero; cobra has already printed the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
