package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
)

var (
	analyzeFile   string
	analyzeURL    string
	analyzeVendor string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a document without processing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		analyzer, err := loadAnalyzer()
		if err != nil {
			return err
		}

		var snap *model.ExtractionSnapshot
		meta := model.DocumentMetadata{}
		switch {
		case analyzeFile != "":
			req, err := loadDocument(analyzeFile)
			if err != nil {
				return err
			}
			snap = req.Snapshot
			for k, v := range req.Metadata {
				meta[k] = v
			}
		case analyzeURL != "":
			if cfg.DocIntel.Endpoint == "" || cfg.DocIntel.Key == "" {
				return eris.New("docintel.endpoint and docintel.key are required for --url")
			}
			snap, err = snapshotFromURL(ctx, newDocIntel(), resilience.FromConfig(cfg.Resilience), analyzeURL)
			if err != nil {
				return err
			}
			meta[model.MetaSourceURL] = analyzeURL
		default:
			return eris.New("one of --file or --url is required")
		}
		if analyzeVendor != "" {
			meta[model.MetaVendor] = analyzeVendor
		}

		assessment, err := analyzer.Analyze(snap, meta)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assessment)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "JSON document or snapshot file")
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "document URL to analyze with the layout model")
	analyzeCmd.Flags().StringVar(&analyzeVendor, "vendor", "", "vendor name hint")
	rootCmd.AddCommand(analyzeCmd)
}
