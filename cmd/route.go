package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/router"
)

var (
	routeFile      string
	routeURL       string
	routeVendor    string
	routeMeta      []string
	routeForceMode string
)

var routeCmd = &cobra.Command{
	Use:   "route <document-id>",
	Short: "Route a single document",
	Long:  "Scores a document, dispatches it to the recommended processing path and prints the routing outcome as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initRouter(ctx, "route")
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := buildRequest(cmd, env, args)
		if err != nil {
			return err
		}

		outcome, err := env.Router.Route(ctx, req)
		if err != nil {
			return eris.Wrap(err, "route")
		}

		if env.Store != nil {
			if err := env.Store.SaveOutcome(ctx, outcome); err != nil {
				zap.L().Warn("failed to save outcome", zap.String("outcome_id", outcome.ID), zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

// buildRequest assembles a routing request from the command's flags. A
// --file request is the base; the positional ID, --url and metadata flags
// override it.
func buildRequest(cmd *cobra.Command, env *routerEnv, args []string) (router.RouteRequest, error) {
	var req router.RouteRequest
	if routeFile != "" {
		r, err := loadDocument(routeFile)
		if err != nil {
			return req, err
		}
		req = r
	}
	if len(args) == 1 {
		req.DocumentID = args[0]
	}
	if req.DocumentID == "" {
		return req, eris.New("document id is required (argument or document_id in --file)")
	}

	meta, err := parseMetadata(routeMeta)
	if err != nil {
		return req, err
	}
	if req.Metadata == nil {
		req.Metadata = model.DocumentMetadata{}
	}
	for k, v := range meta {
		req.Metadata[k] = v
	}
	if routeVendor != "" {
		req.Metadata[model.MetaVendor] = routeVendor
	}

	if routeURL != "" {
		req.Metadata[model.MetaSourceURL] = routeURL
		if req.Snapshot == nil {
			snap, err := snapshotFromURL(cmd.Context(), env.DocIntel, env.Guard, routeURL)
			if err != nil {
				return req, err
			}
			req.Snapshot = snap
		}
	}

	if cmd.Flags().Changed("force-mode") {
		req.ForceMode = routeForceMode
	}
	return req, nil
}

func init() {
	routeCmd.Flags().StringVar(&routeFile, "file", "", "JSON document file (snapshot, metadata, force_mode)")
	routeCmd.Flags().StringVar(&routeURL, "url", "", "document URL; analyzed with the layout model when no snapshot is given")
	routeCmd.Flags().StringVar(&routeVendor, "vendor", "", "vendor name hint")
	routeCmd.Flags().StringSliceVar(&routeMeta, "meta", nil, "metadata as key=value (repeatable)")
	routeCmd.Flags().StringVar(&routeForceMode, "force-mode", "", "bypass scoring: traditional, multi_agent or mcp")
	rootCmd.AddCommand(routeCmd)
}
