// Package repository provides data access interfaces and implementations
// for the article ingestion service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from the crawl loop.
//
// # Repository Interfaces
//
// The package provides the following repository interfaces:
//
//   - WorkRepository: Manages persistence of normalized bibliographic works
//   - RelationRepository: Manages citation edges between works
//   - Store: Combined write surface the run controller commits batches through
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization. The
// crawler nonetheless serializes writes through a single committing goroutine,
// so batch commits never race each other in practice.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass transaction from database.DB.WithTransaction for atomic operations.
// The PgStore facade wraps exactly that pattern so a page of works and its
// citation edges commit or roll back as one unit.
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to services:
//
//	db, _ := database.New(ctx, cfg, logger)
//	workRepo := repository.NewPgWorkRepository(db)
//	relationRepo := repository.NewPgRelationRepository(db)
//	store := repository.NewPgStore(db, logger)
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
//
// # Constructor Pattern
//
// Repository implementations follow a constructor pattern that accepts DBTX:
//
//	type PgWorkRepository struct {
//	    db DBTX
//	}
//
//	func NewPgWorkRepository(db DBTX) *PgWorkRepository {
//	    return &PgWorkRepository{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
//
// # Transaction Usage Example
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    // Create a transactional repository instance
//	    txRepo := repository.NewPgWorkRepository(tx)
//	    // All operations within this function use the same transaction
//	    _, _, err := txRepo.UpsertBatch(ctx, works)
//	    return err
//	})
type DBTX = database.DBTX

// DB is the handle surface the store facade needs: direct queries plus
// transactional execution. *database.DB satisfies it.
type DB interface {
	DBTX
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
