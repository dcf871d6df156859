package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stride/internal/config"
	"stride/internal/ingest"
	"stride/internal/matching"
	"stride/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		provider    string
		raceID      string
		raceDateArg string
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Import a provider result file and resolve runner identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raceDate, err := time.Parse("2006-01-02", raceDateArg)
			if err != nil {
				return fmt.Errorf("parse --race-date %q (want YYYY-MM-DD): %w", raceDateArg, err)
			}

			return ctx.withEngine(func(cfg *config.Config, st *store.Store, engine *matching.Engine) error {
				importer := ingest.NewImporter(cfg, engine, ctx.ensureLogger())
				summary, err := importer.ImportFile(cmd.Context(), args[0], ingest.Batch{
					Provider: provider,
					RaceID:   raceID,
					RaceDate: raceDate,
				})
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, summary)
				}
				renderSummary(cmd, summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Source provider identifier (required)")
	cmd.Flags().StringVar(&raceID, "race", "", "Race reference the file belongs to (required)")
	cmd.Flags().StringVar(&raceDateArg, "race-date", "", "Race date as YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the batch summary as JSON")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("race")
	_ = cmd.MarkFlagRequired("race-date")

	return cmd
}

func renderSummary(cmd *cobra.Command, summary *ingest.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch %s finished in %s\n\n", summary.BatchID, summary.Elapsed.Round(time.Millisecond))

	rows := [][]string{
		{"Records", strconv.Itoa(summary.Total)},
		{"Auto-matched", strconv.Itoa(summary.AutoMatched)},
		{"Pending review", strconv.Itoa(summary.PendingReview)},
		{"New identities", strconv.Itoa(summary.NewIdentities)},
		{"Duplicates", strconv.Itoa(summary.Duplicates)},
		{"Failed", strconv.Itoa(summary.Failed)},
	}
	fmt.Fprintln(out, renderTable([]string{"Outcome", "Count"}, rows, 2))

	for _, recordErr := range summary.Errors {
		fmt.Fprintf(out, "failed %s: %v\n", recordErr.SourceResultID, recordErr.Err)
	}
}
