package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/report"
	"github.com/sells-group/docrouter/internal/store"
)

var outcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Inspect stored routing outcomes",
	Long:  "Commands for listing, viewing and summarizing persisted routing outcomes.",
}

// -- outcomes list --

var outcomesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routing outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := outcomeFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		outcomes, err := store.ListAll(ctx, st, filter)
		if err != nil {
			return eris.Wrap(err, "outcomes list")
		}

		if len(outcomes) == 0 {
			fmt.Fprintln(os.Stderr, "No outcomes found.")
			return nil
		}

		formatOutcomesList(os.Stdout, outcomes)
		return nil
	},
}

// -- outcomes show --

var outcomesShowCmd = &cobra.Command{
	Use:   "show <outcome-id>",
	Short: "Show full details of an outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		o, err := st.GetOutcome(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "outcomes show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	},
}

// -- outcomes stats --

var outcomesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show routing statistics over stored outcomes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := outcomeFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		outcomes, err := store.ListAll(ctx, st, filter)
		if err != nil {
			return eris.Wrap(err, "outcomes stats")
		}

		formatStatistics(os.Stdout, report.Summarize(outcomes))
		return nil
	},
}

func addOutcomeFilterFlags(cmd *cobra.Command, defLimit int) {
	cmd.Flags().String("document", "", "filter by document id")
	cmd.Flags().String("mode", "", "filter by processing mode (traditional, multi_agent, mcp)")
	cmd.Flags().Bool("fallback", false, "only outcomes that used the fallback path")
	cmd.Flags().Duration("since", 0, "only outcomes newer than this (e.g. 24h)")
	cmd.Flags().Int("limit", defLimit, "max number of outcomes (0 = all)")
}

func outcomeFilterFromFlags(cmd *cobra.Command) (store.OutcomeFilter, error) {
	docID, _ := cmd.Flags().GetString("document")
	mode, _ := cmd.Flags().GetString("mode")
	fallback, _ := cmd.Flags().GetBool("fallback")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := store.OutcomeFilter{
		DocumentID:   docID,
		FallbackOnly: fallback,
		Limit:        limit,
	}
	if mode != "" {
		m, err := model.ParseProcessingMode(mode)
		if err != nil {
			return filter, eris.Wrap(err, "invalid --mode")
		}
		filter.Mode = m
	}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}
	return filter, nil
}

func init() {
	addOutcomeFilterFlags(outcomesListCmd, 50)
	addOutcomeFilterFlags(outcomesStatsCmd, 0)

	outcomesCmd.AddCommand(outcomesListCmd)
	outcomesCmd.AddCommand(outcomesShowCmd)
	outcomesCmd.AddCommand(outcomesStatsCmd)
	rootCmd.AddCommand(outcomesCmd)
}

// formatOutcomesList writes a tabular list of outcomes to out.
func formatOutcomesList(out io.Writer, outcomes []model.RoutingOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOCUMENT\tMODE\tLEVEL\tSCORE\tFALLBACK\tCREATED\tDURATION")

	for _, o := range outcomes {
		id := o.ID
		if len(id) > 8 {
			id = id[:8]
		}

		level, score := "-", "-"
		if o.Assessment != nil {
			level = string(o.Assessment.Level)
			score = fmt.Sprintf("%.1f", o.Assessment.Score)
		}

		fallback := "no"
		if o.FallbackUsed {
			fallback = "yes"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2fs\n",
			id,
			o.DocumentID,
			o.ProcessingMode,
			level,
			score,
			fallback,
			o.Timestamp.Format("2006-01-02 15:04"),
			o.ProcessingTimeSeconds,
		)
	}

	_ = w.Flush()
}

// formatStatistics writes aggregate routing statistics to out.
func formatStatistics(out io.Writer, s model.StatisticsSnapshot) {
	_, _ = fmt.Fprintf(out, "Total routed:   %d\n", s.Total)
	_, _ = fmt.Fprintf(out, "Traditional:    %d (%.1f%%)\n", s.TraditionalCount, s.TraditionalPct)
	_, _ = fmt.Fprintf(out, "Multi-agent:    %d (%.1f%%)\n", s.MultiAgentCount, s.MultiAgentPct)
	_, _ = fmt.Fprintf(out, "MCP:            %d (%.1f%%)\n", s.MCPCount, s.MCPPct)
	_, _ = fmt.Fprintf(out, "Fallbacks:      %d (%.1f%%)\n", s.FallbackCount, s.FallbackRate)
}
