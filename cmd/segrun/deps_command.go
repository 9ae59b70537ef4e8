package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"segrun/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check the segmentation tool and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := deps.CheckSystemDeps(cmd.Context(), cfg)
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					if !r.Available {
						state = "missing"
						if r.Optional {
							state = "missing (optional)"
						}
					}
					rows = append(rows, []string{r.Name, state, fallback(r.Command, "-"), r.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Dependency", "Status", "Command", "Detail"}, rows, nil))
			}
			if missing := deps.Missing(results); len(missing) > 0 {
				return errors.New(plural(len(missing), "required dependency") + " unavailable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
