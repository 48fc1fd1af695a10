// Package pipeline provides integration tests for the full crawl cycle.
// These tests drive the run controller end to end: scheduling -> fetch ->
// extract -> store -> checkpoint, including a stop and resume across two
// controller instances sharing one store and checkpoint file.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/checkpoint"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/config"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/crawler"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/events"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/repository"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/upstream/openalex"
)

// memStore is an in-memory Store shared across controller runs within a
// scenario, standing in for Postgres.
type memStore struct {
	mu        sync.Mutex
	works     map[string]*domain.Work
	relations map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		works:     make(map[string]*domain.Work),
		relations: make(map[string]bool),
	}
}

var _ repository.Store = (*memStore)(nil)

func (s *memStore) CommitBatch(_ context.Context, works []*domain.Work, relations []domain.Relation) (repository.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result repository.BatchResult
	for _, work := range works {
		if _, ok := s.works[work.ID]; ok {
			result.WorksReplaced++
		} else {
			result.WorksInserted++
		}
		stored := *work
		s.works[work.ID] = &stored
	}
	for _, rel := range relations {
		key := rel.FromID + "|" + rel.ToID + "|" + string(rel.Type)
		if !s.relations[key] {
			s.relations[key] = true
			result.RelationsWritten++
		}
	}
	return result, nil
}

func (s *memStore) WorkCount(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.works)), nil
}

func (s *memStore) WorkCountByDomain(_ context.Context, crawlDomain string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, work := range s.works {
		if work.Domain == crawlDomain {
			n++
		}
	}
	return n, nil
}

func (s *memStore) WorkCountsByDomain(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, work := range s.works {
		counts[work.Domain]++
	}
	return counts, nil
}

func (s *memStore) RelationCount(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.relations)), nil
}

func (s *memStore) FootprintBytes(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.works)) * 1024, nil
}

// pagedFetcher serves scripted pages keyed by search term and cursor, and
// records the order of fetches. A page marked blocking parks the fetch
// until its context ends, signalling reached on entry.
type pagedFetcher struct {
	mu       sync.Mutex
	pages    map[string]*openalex.Page
	blocking map[string]bool
	searches []string

	reached     chan struct{}
	reachedOnce sync.Once
}

func newPagedFetcher() *pagedFetcher {
	return &pagedFetcher{
		pages:    make(map[string]*openalex.Page),
		blocking: make(map[string]bool),
		reached:  make(chan struct{}),
	}
}

func pageKey(search, cursor string) string {
	return search + "|" + cursor
}

func (f *pagedFetcher) page(search, cursor string, page *openalex.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey(search, cursor)] = page
}

func (f *pagedFetcher) blockAt(search, cursor string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocking[pageKey(search, cursor)] = true
}

func (f *pagedFetcher) searchLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func (f *pagedFetcher) ListWorks(ctx context.Context, q openalex.WorksQuery) (*openalex.Page, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q.Search)
	key := pageKey(q.Search, q.Cursor)
	page, ok := f.pages[key]
	blocked := f.blocking[key]
	f.mu.Unlock()

	if blocked {
		f.reachedOnce.Do(func() { close(f.reached) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, fmt.Errorf("unscripted fetch: search=%q cursor=%q", q.Search, q.Cursor)
	}
	return page, nil
}

func workPage(prefix string, n int, nextCursor string) *openalex.Page {
	works := make([]openalex.Work, n)
	for i := range works {
		works[i] = openalex.Work{
			ID:              fmt.Sprintf("https://openalex.org/W%s%03d", prefix, i),
			DisplayName:     fmt.Sprintf("Work %s %d", prefix, i),
			PublicationYear: 2021,
			CitedByCount:    500 - i,
		}
	}
	return &openalex.Page{Works: works, NextCursor: nextCursor}
}

func pipelineConfig(t *testing.T, domains []config.DomainConfig) config.CrawlConfig {
	t.Helper()
	return config.CrawlConfig{
		Concurrency:    1,
		PageSize:       50,
		BatchSize:      25,
		PerCallCap:     1000,
		MaxAttempts:    1,
		RequestTimeout: 50 * time.Millisecond,
		CheckpointPath: filepath.Join(t.TempDir(), "crawl_progress.json"),
		SizeCeilingMB:  100000,
		TrackRelations: true,
		Domains:        domains,
	}
}

func newController(cfg config.CrawlConfig, fetcher crawler.Fetcher, store repository.Store) *crawler.Controller {
	tracker := checkpoint.NewTracker(cfg.CheckpointPath, zerolog.Nop())
	publisher := events.NewPublisher(events.Config{}, nil, zerolog.Nop())
	return crawler.New(cfg, fetcher, store, tracker, publisher, nil, zerolog.Nop())
}

func TestCrawlPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Run("weighted domains crawled in priority order", func(t *testing.T) {
		cfg := pipelineConfig(t, []config.DomainConfig{
			{
				Name:       "machine learning",
				Weight:     3.0,
				MaxPapers:  1000,
				Keywords:   []string{"transformers"},
				YearRanges: []domain.YearRange{{From: 2020, To: 2024}},
			},
			{
				Name:       "chemistry",
				Weight:     1.0,
				MaxPapers:  1000,
				Keywords:   []string{"catalysis"},
				YearRanges: []domain.YearRange{{From: 2020, To: 2024}},
			},
		})

		fetcher := newPagedFetcher()
		mlPage1 := workPage("ML1", 50, "ml-c2")
		mlPage1.Works[0].ReferencedWorks = []string{"https://openalex.org/WREF1", "https://openalex.org/WREF2"}
		fetcher.page("transformers", domain.CursorStart, mlPage1)
		fetcher.page("transformers", "ml-c2", workPage("ML2", 50, ""))
		fetcher.page("catalysis", domain.CursorStart, workPage("CH1", 40, "ch-c2"))
		fetcher.page("catalysis", "ch-c2", workPage("CH2", 30, ""))

		store := newMemStore()
		ctrl := newController(cfg, fetcher, store)

		reason, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StopReasonCompleted, reason)

		// The heavier domain is drained before the lighter one starts.
		assert.Equal(t, []string{"transformers", "transformers", "catalysis", "catalysis"}, fetcher.searchLog())

		mlCount, err := store.WorkCountByDomain(context.Background(), "machine learning")
		require.NoError(t, err)
		assert.Equal(t, int64(100), mlCount)

		chemCount, err := store.WorkCountByDomain(context.Background(), "chemistry")
		require.NoError(t, err)
		assert.Equal(t, int64(70), chemCount)

		// Two referenced works produce a forward and a reverse edge each.
		relations, err := store.RelationCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(4), relations)

		status := ctrl.Status()
		assert.Equal(t, crawler.StateStopped, status.State)
		assert.Equal(t, int64(170), status.Stats.TotalRecords)
	})

	t.Run("stop mid-run then resume to completion", func(t *testing.T) {
		catalog := []config.DomainConfig{{
			Name:       "neuroscience",
			Weight:     2.0,
			MaxPapers:  1000,
			Keywords:   []string{"connectomics"},
			YearRanges: []domain.YearRange{{From: 2020, To: 2024}},
		}}
		cfg := pipelineConfig(t, catalog)
		store := newMemStore()

		// First run: two pages commit, the third blocks until the stop
		// request drains the pool.
		first := newPagedFetcher()
		first.page("connectomics", domain.CursorStart, workPage("N1", 50, "c2"))
		first.page("connectomics", "c2", workPage("N2", 50, "c3"))
		first.blockAt("connectomics", "c3")

		ctrl := newController(cfg, first, store)
		go func() {
			<-first.reached
			ctrl.RequestStop()
		}()

		reason, err := ctrl.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StopReasonSignal, reason)

		count, err := store.WorkCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(100), count)

		key := domain.TaskKey("neuroscience", "connectomics", domain.YearRange{From: 2020, To: 2024})
		tracker := checkpoint.NewTracker(cfg.CheckpointPath, zerolog.Nop())
		require.NoError(t, tracker.Load())
		task, ok := tracker.Task(key)
		require.True(t, ok)
		assert.Equal(t, "c3", task.Cursor)
		assert.Equal(t, int64(100), task.RecordsFetched)
		assert.False(t, task.Completed)

		// Second run: a fresh controller picks up at the saved cursor and
		// only the remaining pages are scripted.
		second := newPagedFetcher()
		second.page("connectomics", "c3", workPage("N3", 50, "c4"))
		second.page("connectomics", "c4", workPage("N4", 30, ""))

		resumed := newController(cfg, second, store)
		reason, err = resumed.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.StopReasonCompleted, reason)
		assert.Equal(t, []string{"connectomics", "connectomics"}, second.searchLog())

		count, err = store.WorkCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(180), count)

		tracker = checkpoint.NewTracker(cfg.CheckpointPath, zerolog.Nop())
		require.NoError(t, tracker.Load())
		task, ok = tracker.Task(key)
		require.True(t, ok)
		assert.True(t, task.Completed)
		assert.Equal(t, int64(180), task.RecordsFetched)
		assert.Equal(t, int64(180), tracker.Stats().TotalRecords)
	})
}
