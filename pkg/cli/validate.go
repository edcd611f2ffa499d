package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/expectd/pkg/config"
	"github.com/getmockd/expectd/pkg/expect"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate expectation files without serving them",
		Long: `Validate expectation files without starting a server.

This command checks:
  - YAML/JSON syntax
  - The expectation file schema (required fields, methods, status codes)
  - That every expectation registers cleanly

Examples:
  expectd validate -f expectations.yaml
  expectd validate -f 'testdata/**/*.yaml' --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.LoadGlob(files...)
			if err != nil {
				return err
			}

			p := expect.NewProvider(expect.WithLogger(g.logger(cmd.ErrOrStderr())))
			if err := f.Apply(p); err != nil {
				return fmt.Errorf("invalid expectations: %w", err)
			}

			out := cmd.OutOrStdout()
			expected := p.Expected()
			if g.jsonOutput {
				type result struct {
					Valid        bool     `json:"valid"`
					Declared     int      `json:"declared"`
					Expectations []string `json:"expectations"`
				}
				r := result{Valid: true, Declared: len(f.Expectations), Expectations: make([]string, len(expected))}
				for i, e := range expected {
					r.Expectations[i] = e.String()
				}
				data, _ := json.MarshalIndent(r, "", "  ")
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "valid: %d expectations", len(expected))
			if dups := len(f.Expectations) - len(expected); dups > 0 {
				fmt.Fprintf(out, " (%d replaced by later duplicates)", dups)
			}
			fmt.Fprintln(out)
			for _, e := range expected {
				fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Expectation file or glob (repeatable, supports **)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
