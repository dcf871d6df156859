package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stride/internal/config"
	"stride/internal/identity"
	"stride/internal/store"
)

func newRunnerCommand(ctx *commandContext) *cobra.Command {
	runnerCmd := &cobra.Command{
		Use:   "runner",
		Short: "Inspect resolved runner identities",
	}

	runnerCmd.AddCommand(newRunnerShowCommand(ctx))
	runnerCmd.AddCommand(newRunnerFindCommand(ctx))
	runnerCmd.AddCommand(newRunnerHistoryCommand(ctx))

	return runnerCmd
}

func newRunnerHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <runner-id>",
		Short: "Show an identity's match history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runnerID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				entries, err := st.ListReviewsForRunner(cmd.Context(), runnerID, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No match history for runner #%d\n", runnerID)
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					reviewer := "-"
					if entry.ReviewedBy != "" {
						reviewer = entry.ReviewedBy
					}
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						string(entry.Status),
						strconv.Itoa(entry.MatchScore),
						joinReasons(entry.MatchReasons),
						reviewer,
						entry.CreatedAt.Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Entry", "Status", "Score", "Reasons", "Reviewer", "Created"},
					rows, 1, 3))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	return cmd
}

func newRunnerShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <runner-id>",
		Short: "Show an identity and its recent results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runnerID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				runner, err := st.GetRunner(cmd.Context(), runnerID)
				if err != nil {
					return err
				}
				results, err := st.ListResultsForRunner(cmd.Context(), runnerID, 20)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, struct {
						Runner  *store.Runner   `json:"runner"`
						Results []*store.Result `json:"results"`
					}{runner, results})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Runner #%d: %s\n", runner.ID, runner.Name)
				if runner.City != "" || runner.State != "" {
					fmt.Fprintf(out, "Location: %s, %s\n", runner.City, runner.State)
				}
				if runner.BirthYear > 0 {
					fmt.Fprintf(out, "Birth year: %d\n", runner.BirthYear)
				}
				if len(runner.AlternateNames) > 0 {
					fmt.Fprintf(out, "Alternate names: %s\n", joinReasons(runner.AlternateNames))
				}
				fmt.Fprintf(out, "Confidence: %d  Confirmed matches: %d  Results: %d\n\n",
					runner.MatchingConfidence, runner.ConfirmedMatches, runner.ResultCount)

				if len(results) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{
						result.RaceID,
						result.SourceProvider,
						result.FinishTime,
						strconv.Itoa(result.OverallPlace),
						strconv.Itoa(result.MatchingScore),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Race", "Provider", "Finish", "Place", "Score"},
					rows, 4, 5))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the identity and results as JSON")
	return cmd
}

func newRunnerFindCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var state string

	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Find identities sharing a name's last token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tokens := identity.NormalizeName(args[0])
			if len(tokens) == 0 {
				return fmt.Errorf("no searchable tokens in %q", args[0])
			}
			lastToken := tokens[len(tokens)-1]

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				runners, err := st.FindCandidates(cmd.Context(), lastToken, strings.ToUpper(strings.TrimSpace(state)), limit)
				if err != nil {
					return err
				}
				if len(runners) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No identities with last token %q\n", lastToken)
					return nil
				}

				rows := make([][]string, 0, len(runners))
				for _, runner := range runners {
					rows = append(rows, []string{
						strconv.FormatInt(runner.ID, 10),
						runner.Name,
						runner.City,
						runner.State,
						strconv.Itoa(runner.MatchingConfidence),
						strconv.Itoa(runner.ResultCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "City", "State", "Confidence", "Results"},
					rows, 1, 5, 6))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum identities to list")
	cmd.Flags().StringVar(&state, "state", "", "List identities in this state first")
	return cmd
}
