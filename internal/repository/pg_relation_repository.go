package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// Compile-time interface verification.
var _ RelationRepository = (*PgRelationRepository)(nil)

// PgRelationRepository is a PostgreSQL implementation of RelationRepository.
type PgRelationRepository struct {
	db DBTX
}

// NewPgRelationRepository creates a new PostgreSQL relation repository.
func NewPgRelationRepository(db DBTX) *PgRelationRepository {
	return &PgRelationRepository{db: db}
}

// InsertBatch inserts multiple relations in a single roundtrip.
// Existing (from, to, type) triples are left untouched.
func (r *PgRelationRepository) InsertBatch(ctx context.Context, relations []domain.Relation) (int64, error) {
	if len(relations) == 0 {
		return 0, nil
	}

	for i := range relations {
		if err := relations[i].Validate(); err != nil {
			return 0, fmt.Errorf("relation at index %d: %w", i, err)
		}
	}

	query := `
		INSERT INTO work_relations (from_id, to_id, relation_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_id, to_id, relation_type) DO NOTHING`

	batch := &pgx.Batch{}
	for _, rel := range relations {
		batch.Queue(query, rel.FromID, rel.ToID, rel.Type)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var written int64
	for i := range relations {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("failed to insert relation at index %d: %w", i, err)
		}
		written += tag.RowsAffected()
	}

	return written, nil
}

// ListFrom retrieves all edges originating at a work, ordered by target.
func (r *PgRelationRepository) ListFrom(ctx context.Context, fromID string) ([]domain.Relation, error) {
	if fromID == "" {
		return nil, domain.NewValidationError("from_id", "from ID is required")
	}

	query := `
		SELECT from_id, to_id, relation_type
		FROM work_relations
		WHERE from_id = $1
		ORDER BY to_id, relation_type`

	rows, err := r.db.Query(ctx, query, fromID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.Relation
	for rows.Next() {
		var rel domain.Relation
		if err := rows.Scan(&rel.FromID, &rel.ToID, &rel.Type); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}

	return relations, nil
}

// Count returns the total number of stored relations.
func (r *PgRelationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM work_relations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count relations: %w", err)
	}
	return count, nil
}
