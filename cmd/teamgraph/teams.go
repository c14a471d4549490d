package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/teamgraph/agents"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List the available teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, t := range agents.Teams() {
			fmt.Fprintf(out, "%s %s\n", labelColor.Sprintf("%-10s", t.Name), t.Description)
		}
		return nil
	},
}
