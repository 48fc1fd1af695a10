package repository

import (
	"context"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// WorkRepository handles persistence of normalized bibliographic works.
// Works are keyed by their fully-qualified upstream identifier; writing a
// work whose identifier already exists replaces the stored row in full, so
// repeating a batch after a crash converges on the same state.
type WorkRepository interface {
	// UpsertBatch inserts or fully replaces multiple works in a single
	// network roundtrip. Works are matched by id; on conflict every column
	// is overwritten with the incoming value and ingested_at is restamped.
	// Returns the number of rows newly inserted and the number replaced.
	// Returns domain.ErrInvalidInput if any work fails validation.
	UpsertBatch(ctx context.Context, works []*domain.Work) (inserted, replaced int, err error)

	// GetByID retrieves a work by its fully-qualified upstream identifier.
	// Returns domain.ErrNotFound if no matching work exists.
	GetByID(ctx context.Context, id string) (*domain.Work, error)

	// GetByShortID retrieves a work by the short form of its identifier.
	// Returns domain.ErrNotFound if no matching work exists.
	GetByShortID(ctx context.Context, shortID string) (*domain.Work, error)

	// List retrieves works matching the filter criteria, most cited first.
	// Returns the matching works and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter WorkFilter) ([]*domain.Work, int64, error)

	// Count returns the total number of stored works.
	Count(ctx context.Context) (int64, error)

	// CountByDomain returns the number of stored works for one crawl domain.
	CountByDomain(ctx context.Context, crawlDomain string) (int64, error)

	// CountsByDomain returns per-domain row counts for every domain present.
	CountsByDomain(ctx context.Context) (map[string]int64, error)
}

// WorkFilter specifies criteria for listing works.
type WorkFilter struct {
	// Domain filters to works ingested under a specific crawl domain (optional).
	Domain *string

	// Year filters to works published in a specific year (optional).
	Year *int

	// MinCitations filters to works with at least this many citations (optional).
	MinCitations *int

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *WorkFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
