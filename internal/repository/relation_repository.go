package repository

import (
	"context"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// RelationRepository handles persistence of citation edges between works.
// Edges are insert-if-absent: re-inserting an existing (from, to, type)
// triple is a no-op, so replaying a page never duplicates an edge.
type RelationRepository interface {
	// InsertBatch inserts multiple relations in a single network roundtrip,
	// skipping any that already exist. Returns the number of edges newly
	// written. Returns domain.ErrInvalidInput if any relation is malformed.
	InsertBatch(ctx context.Context, relations []domain.Relation) (int64, error)

	// ListFrom retrieves all edges originating at a work, ordered by target.
	ListFrom(ctx context.Context, fromID string) ([]domain.Relation, error)

	// Count returns the total number of stored relations.
	Count(ctx context.Context) (int64, error)
}
