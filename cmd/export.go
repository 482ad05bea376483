package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docrouter/internal/report"
	"github.com/sells-group/docrouter/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored outcomes to an XLSX workbook",
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
			return eris.Wrap(err, "export: list outcomes")
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", exportOut)
		}
		if err := report.WriteXLSX(f, outcomes); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "export: close %s", exportOut)
		}

		fmt.Fprintf(os.Stderr, "Wrote %d outcomes to %s\n", len(outcomes), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "outcomes.xlsx", "output workbook path")
	addOutcomeFilterFlags(exportCmd, 0)
	rootCmd.AddCommand(exportCmd)
}
