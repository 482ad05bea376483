package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/router"
)

var (
	batchLimit       int
	batchConcurrency int
	batchForceMode   string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Route every JSON document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRouter(ctx, "route")
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := listDocuments(args[0])
		if err != nil {
			return err
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		outcomes, err := processBatch(ctx, paths, batchLimit, concurrency, func(ctx context.Context, req router.RouteRequest) (*model.RoutingOutcome, error) {
			if batchForceMode != "" {
				req.ForceMode = batchForceMode
			}
			return env.Router.Route(ctx, req)
		})
		if err != nil {
			return err
		}

		if env.Store != nil && len(outcomes) > 0 {
			n, err := env.Store.SaveOutcomes(ctx, outcomes)
			if err != nil {
				return eris.Wrap(err, "save batch outcomes")
			}
			zap.L().Info("saved outcomes", zap.Int64("count", n))
		}

		stats := env.Router.Statistics()
		zap.L().Info("routing statistics",
			zap.Int64("total", stats.Total),
			zap.Float64("traditional_pct", stats.TraditionalPct),
			zap.Float64("multi_agent_pct", stats.MultiAgentPct),
			zap.Float64("mcp_pct", stats.MCPPct),
			zap.Float64("fallback_rate", stats.FallbackRate),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of documents to process")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel documents (default from config)")
	batchCmd.Flags().StringVar(&batchForceMode, "force-mode", "", "force every document to traditional, multi_agent or mcp")
	rootCmd.AddCommand(batchCmd)
}

// routeFunc is the callback signature for routing a single document.
type routeFunc func(ctx context.Context, req router.RouteRequest) (*model.RoutingOutcome, error)

// processBatch applies limit, then loads and routes documents concurrently.
// Per-document failures are logged and skipped. Successful outcomes are
// returned in input order.
func processBatch(ctx context.Context, paths []string, limit, concurrency int, route routeFunc) ([]*model.RoutingOutcome, error) {
	if len(paths) == 0 {
		zap.L().Info("no documents found")
		return nil, nil
	}

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, fellBack atomic.Int64
	results := make([]*model.RoutingOutcome, len(paths))

	for i, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))

			req, err := loadDocument(path)
			if err != nil {
				failed.Add(1)
				log.Error("load document failed", zap.Error(err))
				return nil
			}
			log = log.With(zap.String("document_id", req.DocumentID))

			outcome, err := route(gctx, req)
			if err != nil {
				failed.Add(1)
				log.Error("routing failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			if outcome.FallbackUsed {
				fellBack.Add(1)
			}
			results[i] = outcome
			log.Info("document routed",
				zap.String("mode", string(outcome.ProcessingMode)),
				zap.Bool("fallback", outcome.FallbackUsed),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	outcomes := make([]*model.RoutingOutcome, 0, succeeded.Load())
	for _, o := range results {
		if o != nil {
			outcomes = append(outcomes, o)
		}
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("fallbacks", fellBack.Load()),
	)

	if err := ctx.Err(); err != nil {
		return outcomes, eris.Wrap(err, "batch interrupted")
	}
	return outcomes, nil
}
