package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// Compile-time interface verification.
var _ WorkRepository = (*PgWorkRepository)(nil)

// PgWorkRepository is a PostgreSQL implementation of WorkRepository.
type PgWorkRepository struct {
	db DBTX
}

// NewPgWorkRepository creates a new PostgreSQL work repository.
func NewPgWorkRepository(db DBTX) *PgWorkRepository {
	return &PgWorkRepository{db: db}
}

// UpsertBatch inserts or fully replaces multiple works in a single roundtrip.
// Uses pgx.Batch to send all upserts together, dramatically reducing latency
// compared to individual queries. On conflict the existing row is overwritten
// column for column; older values never survive a re-ingest, so replaying a
// page after a crash cannot fork the stored state.
func (r *PgWorkRepository) UpsertBatch(ctx context.Context, works []*domain.Work) (int, int, error) {
	if len(works) == 0 {
		return 0, 0, nil
	}

	for i, work := range works {
		if work == nil {
			return 0, 0, domain.NewValidationError("work", fmt.Sprintf("work at index %d is nil", i))
		}
		if err := work.Validate(); err != nil {
			return 0, 0, fmt.Errorf("work at index %d: %w", i, err)
		}
	}

	query := `
		INSERT INTO works (
			id, short_id, title, authors, author_names,
			year, publication_date, venue, venue_issns, venue_host,
			abstract, keywords, research_field, primary_topic, topics,
			doi, citation_count, fwci, citation_percentile, referenced_works,
			url, domain, ingested_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, now()
		)
		ON CONFLICT (id) DO UPDATE SET
			short_id = EXCLUDED.short_id,
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			author_names = EXCLUDED.author_names,
			year = EXCLUDED.year,
			publication_date = EXCLUDED.publication_date,
			venue = EXCLUDED.venue,
			venue_issns = EXCLUDED.venue_issns,
			venue_host = EXCLUDED.venue_host,
			abstract = EXCLUDED.abstract,
			keywords = EXCLUDED.keywords,
			research_field = EXCLUDED.research_field,
			primary_topic = EXCLUDED.primary_topic,
			topics = EXCLUDED.topics,
			doi = EXCLUDED.doi,
			citation_count = EXCLUDED.citation_count,
			fwci = EXCLUDED.fwci,
			citation_percentile = EXCLUDED.citation_percentile,
			referenced_works = EXCLUDED.referenced_works,
			url = EXCLUDED.url,
			domain = EXCLUDED.domain,
			ingested_at = now()
		RETURNING (xmax = 0) AS inserted`

	batch := &pgx.Batch{}
	for i, work := range works {
		authorsJSON, err := json.Marshal(work.Authors)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to marshal authors at index %d: %w", i, err)
		}
		if len(work.Authors) == 0 {
			// authors is JSONB NOT NULL; a nil slice marshals to "null".
			authorsJSON = []byte("[]")
		}

		batch.Queue(query,
			work.ID,
			work.ShortID,
			work.Title,
			authorsJSON,
			work.AuthorNames,
			nullInt(work.Year),
			nullString(work.PublicationDate),
			nullString(work.Venue),
			work.VenueISSNs,
			nullString(work.VenueHost),
			nullString(work.Abstract),
			work.Keywords,
			nullString(work.ResearchField),
			nullString(work.PrimaryTopic),
			work.Topics,
			nullString(work.DOI),
			work.CitationCount,
			work.FWCI,
			work.CitationPercentile,
			work.ReferencedWorks,
			nullString(work.URL),
			work.Domain,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var inserted, replaced int
	for i := range works {
		var wasInsert bool
		if err := br.QueryRow().Scan(&wasInsert); err != nil {
			return 0, 0, fmt.Errorf("failed to upsert work at index %d: %w", i, err)
		}
		if wasInsert {
			inserted++
		} else {
			replaced++
		}
	}

	return inserted, replaced, nil
}

// GetByID retrieves a work by its fully-qualified upstream identifier.
func (r *PgWorkRepository) GetByID(ctx context.Context, id string) (*domain.Work, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "id is required")
	}

	query := workSelectColumns + ` FROM works WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	work, err := scanWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("work", id)
		}
		return nil, fmt.Errorf("failed to get work by ID: %w", err)
	}

	return work, nil
}

// GetByShortID retrieves a work by the short form of its identifier.
func (r *PgWorkRepository) GetByShortID(ctx context.Context, shortID string) (*domain.Work, error) {
	if shortID == "" {
		return nil, domain.NewValidationError("short_id", "short ID is required")
	}

	query := workSelectColumns + ` FROM works WHERE short_id = $1`

	row := r.db.QueryRow(ctx, query, shortID)
	work, err := scanWork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("work", shortID)
		}
		return nil, fmt.Errorf("failed to get work by short ID: %w", err)
	}

	return work, nil
}

// List retrieves works matching the filter criteria, most cited first.
func (r *PgWorkRepository) List(ctx context.Context, filter WorkFilter) ([]*domain.Work, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Domain != nil {
		conditions = append(conditions, fmt.Sprintf("domain = $%d", argIndex))
		args = append(args, *filter.Domain)
		argIndex++
	}

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}

	if filter.MinCitations != nil {
		conditions = append(conditions, fmt.Sprintf("citation_count >= $%d", argIndex))
		args = append(args, *filter.MinCitations)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM works %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count works: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`%s
		FROM works
		%s
		ORDER BY citation_count DESC, id
		LIMIT $%d OFFSET $%d`,
		workSelectColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list works: %w", err)
	}
	defer rows.Close()

	works := make([]*domain.Work, 0, filter.Limit)
	for rows.Next() {
		work, err := scanWorkFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan work: %w", err)
		}
		works = append(works, work)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating works: %w", err)
	}

	return works, totalCount, nil
}

// Count returns the total number of stored works.
func (r *PgWorkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM works").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count works: %w", err)
	}
	return count, nil
}

// CountByDomain returns the number of stored works for one crawl domain.
func (r *PgWorkRepository) CountByDomain(ctx context.Context, crawlDomain string) (int64, error) {
	if crawlDomain == "" {
		return 0, domain.NewValidationError("domain", "domain is required")
	}

	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM works WHERE domain = $1", crawlDomain).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count works for domain %s: %w", crawlDomain, err)
	}
	return count, nil
}

// CountsByDomain returns per-domain row counts for every domain present.
func (r *PgWorkRepository) CountsByDomain(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, "SELECT domain, COUNT(*) FROM works GROUP BY domain")
	if err != nil {
		return nil, fmt.Errorf("failed to count works by domain: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var crawlDomain string
		var count int64
		if err := rows.Scan(&crawlDomain, &count); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		counts[crawlDomain] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domain counts: %w", err)
	}

	return counts, nil
}

// workSelectColumns lists the works columns in table order, shared by every
// SELECT so the scan destinations line up.
const workSelectColumns = `
		SELECT id, short_id, title, authors, author_names,
			year, publication_date, venue, venue_issns, venue_host,
			abstract, keywords, research_field, primary_topic, topics,
			doi, citation_count, fwci, citation_percentile, referenced_works,
			url, domain, ingested_at`

// workScanDest holds the destination pointers for scanning a works row.
// Nullable text and integer columns scan into pointer intermediates that
// finalize collapses back onto the value fields.
type workScanDest struct {
	work        domain.Work
	authorsJSON []byte
	year        *int
	pubDate     *string
	venue       *string
	venueHost   *string
	abstract    *string
	field       *string
	topic       *string
	doi         *string
	url         *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *workScanDest) destinations() []interface{} {
	return []interface{}{
		&d.work.ID, &d.work.ShortID, &d.work.Title, &d.authorsJSON, &d.work.AuthorNames,
		&d.year, &d.pubDate, &d.venue, &d.work.VenueISSNs, &d.venueHost,
		&d.abstract, &d.work.Keywords, &d.field, &d.topic, &d.work.Topics,
		&d.doi, &d.work.CitationCount, &d.work.FWCI, &d.work.CitationPercentile, &d.work.ReferencedWorks,
		&d.url, &d.work.Domain, &d.work.IngestedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields and
// dereferences nullable columns.
func (d *workScanDest) finalize() (*domain.Work, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.work.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	if d.year != nil {
		d.work.Year = *d.year
	}
	if d.pubDate != nil {
		d.work.PublicationDate = *d.pubDate
	}
	if d.venue != nil {
		d.work.Venue = *d.venue
	}
	if d.venueHost != nil {
		d.work.VenueHost = *d.venueHost
	}
	if d.abstract != nil {
		d.work.Abstract = *d.abstract
	}
	if d.field != nil {
		d.work.ResearchField = *d.field
	}
	if d.topic != nil {
		d.work.PrimaryTopic = *d.topic
	}
	if d.doi != nil {
		d.work.DOI = *d.doi
	}
	if d.url != nil {
		d.work.URL = *d.url
	}

	return &d.work, nil
}

// scanWork scans a single row into a Work.
func scanWork(row pgx.Row) (*domain.Work, error) {
	var dest workScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanWorkFromRows scans the current row from pgx.Rows into a Work.
func scanWorkFromRows(rows pgx.Rows) (*domain.Work, error) {
	var dest workScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// nullString converts an empty string to a NULL-able pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullInt converts a zero int to a NULL-able pointer.
func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
