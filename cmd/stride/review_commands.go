package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stride/internal/config"
	"stride/internal/matching"
	"stride/internal/review"
	"stride/internal/store"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work the pending match review queue",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewShowCommand(ctx))
	reviewCmd.AddCommand(newReviewResolveCommand(ctx, "approve"))
	reviewCmd.AddCommand(newReviewResolveCommand(ctx, "reject"))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var (
		provider string
		raceID   string
		minScore int
		limit    int
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending review entries, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReviewManager(func(cfg *config.Config, st *store.Store, manager *review.Manager) error {
				entries, err := manager.ListPending(cmd.Context(), store.ReviewFilter{
					Provider: provider,
					RaceID:   raceID,
					MinScore: minScore,
					Limit:    limit,
				})
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending reviews")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						strconv.FormatInt(entry.RunnerID, 10),
						strconv.Itoa(entry.MatchScore),
						joinReasons(entry.MatchReasons),
						entry.SourceProvider,
						entry.RaceID,
						entry.CreatedAt.Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Candidate", "Score", "Reasons", "Provider", "Race", "Created"},
					rows, 1, 2, 3))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Filter by source provider")
	cmd.Flags().StringVar(&raceID, "race", "", "Filter by race reference")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Only entries at or above this score")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit entries as JSON")

	return cmd
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one review entry with its raw record and candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withReviewManager(func(cfg *config.Config, st *store.Store, manager *review.Manager) error {
				entry, err := manager.Get(cmd.Context(), entryID)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, entry)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entry %d [%s]\n", entry.ID, entry.Status)
				fmt.Fprintf(out, "Score: %d  Reasons: %s\n", entry.MatchScore, joinReasons(entry.MatchReasons))
				fmt.Fprintf(out, "Source: %s/%s  Race: %s\n", entry.SourceProvider, entry.SourceResultID, entry.RaceID)
				if entry.ReviewedBy != "" && entry.ReviewedAt != nil {
					fmt.Fprintf(out, "Reviewed by %s at %s\n", entry.ReviewedBy, entry.ReviewedAt.Format("2006-01-02 15:04"))
				}

				if raw, err := matching.DecodeSnapshot(entry.RawRecord); err == nil {
					fmt.Fprintf(out, "\nRaw record: %s", raw.Name)
					if raw.Location != "" {
						fmt.Fprintf(out, ", %s", raw.Location)
					}
					if raw.Age > 0 {
						fmt.Fprintf(out, ", age %d", raw.Age)
					}
					fmt.Fprintln(out)
				}

				if entry.RunnerID != 0 {
					runner, err := st.GetRunner(cmd.Context(), entry.RunnerID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Candidate: #%d %s (%s, %s), confidence %d, %d results\n",
						runner.ID, runner.Name, runner.City, runner.State,
						runner.MatchingConfidence, runner.ResultCount)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the entry as JSON")
	return cmd
}

func newReviewResolveCommand(ctx *commandContext, decision string) *cobra.Command {
	var reviewer string

	short := "Approve the proposed match and merge the record"
	if decision == "reject" {
		short = "Reject the proposed match and create a new identity"
	}

	cmd := &cobra.Command{
		Use:   decision + " <entry-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withReviewManager(func(cfg *config.Config, st *store.Store, manager *review.Manager) error {
				var entry *store.ReviewEntry
				if decision == "approve" {
					entry, err = manager.Approve(cmd.Context(), entryID, reviewer)
				} else {
					entry, err = manager.Reject(cmd.Context(), entryID, reviewer)
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d %s; runner #%d\n", entry.ID, entry.Status, entry.RunnerID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer identity recorded on the entry (required)")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "-"
	}
	out := reasons[0]
	for _, reason := range reasons[1:] {
		out += ", " + reason
	}
	return out
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
