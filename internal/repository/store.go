package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// BatchResult reports what a committed batch changed in the store.
type BatchResult struct {
	// WorksInserted is the number of works that did not exist before.
	WorksInserted int

	// WorksReplaced is the number of works whose stored row was overwritten.
	WorksReplaced int

	// RelationsWritten is the number of citation edges newly inserted.
	// Edges that already existed are not counted.
	RelationsWritten int64
}

// Total returns the number of works the batch touched.
func (r BatchResult) Total() int {
	return r.WorksInserted + r.WorksReplaced
}

// Store is the combined write and accounting surface the run controller
// works against. A page of extracted works and its citation edges commit
// as one transaction; callers record checkpoint progress only after
// CommitBatch has returned.
type Store interface {
	// CommitBatch persists a page's works and citation edges atomically.
	// Either everything lands or nothing does. Committing the same batch
	// twice converges on the same stored state.
	CommitBatch(ctx context.Context, works []*domain.Work, relations []domain.Relation) (BatchResult, error)

	// WorkCount returns the total number of stored works.
	WorkCount(ctx context.Context) (int64, error)

	// WorkCountByDomain returns the number of stored works for one crawl domain.
	WorkCountByDomain(ctx context.Context, crawlDomain string) (int64, error)

	// WorkCountsByDomain returns per-domain row counts for every domain present.
	WorkCountsByDomain(ctx context.Context) (map[string]int64, error)

	// RelationCount returns the total number of stored citation edges.
	RelationCount(ctx context.Context) (int64, error)

	// FootprintBytes returns the on-disk size of the backing database.
	FootprintBytes(ctx context.Context) (int64, error)
}

// Compile-time interface verification.
var _ Store = (*PgStore)(nil)

// PgStore is a PostgreSQL implementation of Store backed by the work and
// relation repositories.
type PgStore struct {
	db        DB
	works     *PgWorkRepository
	relations *PgRelationRepository
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(db DB) *PgStore {
	return &PgStore{
		db:        db,
		works:     NewPgWorkRepository(db),
		relations: NewPgRelationRepository(db),
	}
}

// CommitBatch persists a page's works and citation edges in one transaction.
func (s *PgStore) CommitBatch(ctx context.Context, works []*domain.Work, relations []domain.Relation) (BatchResult, error) {
	var result BatchResult
	if len(works) == 0 && len(relations) == 0 {
		return result, nil
	}

	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		inserted, replaced, err := NewPgWorkRepository(tx).UpsertBatch(ctx, works)
		if err != nil {
			return fmt.Errorf("upsert works: %w", err)
		}

		written, err := NewPgRelationRepository(tx).InsertBatch(ctx, relations)
		if err != nil {
			return fmt.Errorf("insert relations: %w", err)
		}

		result = BatchResult{
			WorksInserted:    inserted,
			WorksReplaced:    replaced,
			RelationsWritten: written,
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	return result, nil
}

// WorkCount returns the total number of stored works.
func (s *PgStore) WorkCount(ctx context.Context) (int64, error) {
	return s.works.Count(ctx)
}

// WorkCountByDomain returns the number of stored works for one crawl domain.
func (s *PgStore) WorkCountByDomain(ctx context.Context, crawlDomain string) (int64, error) {
	return s.works.CountByDomain(ctx, crawlDomain)
}

// WorkCountsByDomain returns per-domain row counts for every domain present.
func (s *PgStore) WorkCountsByDomain(ctx context.Context) (map[string]int64, error) {
	return s.works.CountsByDomain(ctx)
}

// RelationCount returns the total number of stored citation edges.
func (s *PgStore) RelationCount(ctx context.Context) (int64, error) {
	return s.relations.Count(ctx)
}

// FootprintBytes returns the on-disk size of the crawl tables, including
// indexes and TOAST data. The size governor compares this against the
// configured ceiling before admitting more work.
func (s *PgStore) FootprintBytes(ctx context.Context) (int64, error) {
	query := `SELECT pg_total_relation_size('works') + pg_total_relation_size('work_relations')`

	var size int64
	if err := s.db.QueryRow(ctx, query).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to measure store size: %w", err)
	}
	return size, nil
}
