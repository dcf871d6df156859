package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"stride/internal/config"
	"stride/internal/preflight"
	"stride/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store counts and environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				health, err := st.Health(cmd.Context())
				if err != nil {
					return err
				}
				checks := preflight.Run(cfg)

				if jsonOut {
					return writeJSON(cmd, struct {
						Health store.HealthSummary `json:"health"`
						Checks []preflight.Result  `json:"checks"`
					}{health, checks})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n\n", st.Path())
				fmt.Fprintf(out, "Runners:         %d\n", health.Runners)
				fmt.Fprintf(out, "Results:         %d\n", health.Results)
				fmt.Fprintf(out, "Pending reviews: %d\n", health.PendingReviews)
				for _, status := range store.AllStatuses() {
					if count, ok := health.ByStatus[status]; ok && status != store.StatusPending {
						fmt.Fprintf(out, "  %-14s %d\n", string(status)+":", count)
					}
				}

				fmt.Fprintln(out)
				for _, check := range checks {
					fmt.Fprintf(out, "%s %s: %s\n", checkMark(out, check.Passed), check.Name, check.Detail)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

func checkMark(w io.Writer, passed bool) string {
	mark, color := "ok", "\x1b[32m"
	if !passed {
		mark, color = "FAIL", "\x1b[31m"
	}
	if !shouldColorize(w) {
		return "[" + mark + "]"
	}
	return "[" + color + mark + "\x1b[0m]"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
