package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if g.jsonOutput {
				data, _ := json.MarshalIndent(map[string]string{
					"version":   Version,
					"commit":    Commit,
					"buildDate": BuildDate,
				}, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintf(out, "expectd %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return nil
		},
	}
}
