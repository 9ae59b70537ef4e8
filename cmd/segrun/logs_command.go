package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"segrun/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var toolLog bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display segrun logs or the tool's run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			if toolLog {
				path = cfg.Progress.LogFile
				if path == "" {
					profile, err := cfg.ToolProfile()
					if err != nil {
						return err
					}
					if path, err = profile.LogFile(); err != nil {
						return err
					}
				}
			}

			opts := logs.TailOptions{Offset: -1, Limit: max(lines, 0)}
			if lines <= 0 {
				opts.Offset = 0
			}
			if follow {
				opts.Follow = true
				opts.Wait = time.Second
			}

			runCtx := cmd.Context()
			printed := false
			for {
				res, err := logs.Tail(runCtx, path, opts)
				if err != nil {
					return fmt.Errorf("tail %s: %w", path, err)
				}
				for _, line := range res.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				select {
				case <-runCtx.Done():
					return nil
				default:
				}
				opts.Offset = res.Offset
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().BoolVar(&toolLog, "tool", false, "Show the segmentation tool's run.log instead")
	return cmd
}
