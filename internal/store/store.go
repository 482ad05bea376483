// Package store persists routing outcomes.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/model"
)

// ErrNotFound is returned when an outcome does not exist.
var ErrNotFound = eris.New("store: outcome not found")

// OutcomeFilter specifies criteria for listing outcomes.
type OutcomeFilter struct {
	DocumentID   string               `json:"document_id,omitempty"`
	Mode         model.ProcessingMode `json:"mode,omitempty"`
	FallbackOnly bool                 `json:"fallback_only,omitempty"`
	Since        time.Time            `json:"since,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ListAll pages through s until filter.Limit outcomes are collected or the
// store has no more. A Limit of zero or less collects every match. Unlike
// ListOutcomes it is not bounded by the per-query cap.
func ListAll(ctx context.Context, s Store, filter OutcomeFilter) ([]model.RoutingOutcome, error) {
	return listPages(ctx, s, filter, maxListLimit)
}

func listPages(ctx context.Context, s Store, filter OutcomeFilter, pageSize int) ([]model.RoutingOutcome, error) {
	var out []model.RoutingOutcome
	for {
		page := pageSize
		if filter.Limit > 0 {
			page = min(page, filter.Limit-len(out))
		}
		if page <= 0 {
			return out, nil
		}

		f := filter
		f.Limit = page
		f.Offset = filter.Offset + len(out)
		rows, err := s.ListOutcomes(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(err, "store: list page at offset %d", f.Offset)
		}
		out = append(out, rows...)
		if len(rows) < page {
			return out, nil
		}
	}
}

func (f OutcomeFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for routing outcomes.
type Store interface {
	SaveOutcome(ctx context.Context, o *model.RoutingOutcome) error
	SaveOutcomes(ctx context.Context, outcomes []*model.RoutingOutcome) (int64, error)
	GetOutcome(ctx context.Context, id string) (*model.RoutingOutcome, error)
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.RoutingOutcome, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Options configures Open.
type Options struct {
	MaxConns int32
	MinConns int32
}

// Open returns the store for driver ("sqlite" or "postgres"). Driver
// "none" or "" returns a nil Store and no error.
func Open(ctx context.Context, driver, dsn string, opts Options) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, &PoolConfig{MaxConns: opts.MaxConns, MinConns: opts.MinConns})
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// outcomeRow is the flattened column set shared by both drivers. The
// assessment and result are stored as JSON documents.
type outcomeRow struct {
	ID             string
	DocumentID     string
	Mode           string
	Score          float64
	Level          string
	Confidence     float64
	FallbackUsed   bool
	ProcessingSecs float64
	Assessment     []byte
	Result         []byte
	CreatedAt      time.Time
}
