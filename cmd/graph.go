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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
	"github.com/cardinalhq/mediarunner/internal/workflow"
)

func init() {
	graphCmd.AddCommand(graphDescribeCmd)
	rootCmd.AddCommand(graphCmd)
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the ingestion workflow",
}

var graphDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the workflow graph as YAML",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g := pipeline.BuildGraph(cfg.Pipeline.Graph)
		if err := workflow.Validate(g, pipeline.NewRegistry(nil, nil, nil)); err != nil {
			return fmt.Errorf("invalid graph: %w", err)
		}
		out, err := g.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}
