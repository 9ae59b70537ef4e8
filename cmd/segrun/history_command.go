package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"segrun/internal/history"
	"segrun/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			filter := make([]services.Status, 0, len(statuses))
			for _, s := range statuses {
				filter = append(filter, services.Status(strings.ToLower(strings.TrimSpace(s))))
			}
			runs, err := store.List(cmd.Context(), history.ListOptions{Limit: limit, Statuses: filter})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					formatWhen(r.StartedAt),
					shortRunID(r.RunID),
					r.Tool,
					fallback(r.Model, "-"),
					strconv.Itoa(r.Frames),
					strconv.Itoa(r.Buckets),
					strconv.Itoa(r.Objects),
					string(r.Status),
					formatElapsed(r.Elapsed),
					r.ErrorMessage,
				})
			}
			headers := []string{"Started", "Run", "Tool", "Model", "Frames", "Procs", "Objects", "Status", "Elapsed", "Error"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show runs with these statuses (succeeded, failed, canceled, invalid)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", plural(int(removed), "run"))
			return nil
		},
	}
}

func openHistory(cmd *cobra.Command, ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled in %s", fallback(ctx.configPath, "the configuration"))
	}
	return history.Open(cmd.Context(), cfg.Paths.HistoryDB)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
