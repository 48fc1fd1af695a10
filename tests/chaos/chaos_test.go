// Package chaos provides fault injection tests for the crawl loop.
//
// These tests verify that the run controller degrades gracefully under
// upstream and storage failures: a failing task is parked without touching
// its checkpoint cursor, healthy tasks keep crawling, and a later run picks
// up exactly where the faults interrupted. No external services are
// required; faults are injected through scripted fetcher and store fakes.
package chaos

import (
	"context"
	"errors"
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

// breakerStore is a minimal in-memory Store that can be made to fail from
// the Nth commit onward. Works are tracked by ID so replayed pages
// converge instead of double counting.
type breakerStore struct {
	mu       sync.Mutex
	byID     map[string]string // work ID -> crawl domain
	commits  int
	failFrom int // 0 disables failure injection
}

func newBreakerStore() *breakerStore {
	return &breakerStore{byID: make(map[string]string)}
}

var _ repository.Store = (*breakerStore)(nil)

func (s *breakerStore) CommitBatch(_ context.Context, works []*domain.Work, _ []domain.Relation) (repository.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits++
	if s.failFrom > 0 && s.commits >= s.failFrom {
		return repository.BatchResult{}, errors.New("store offline")
	}

	var result repository.BatchResult
	for _, work := range works {
		if _, ok := s.byID[work.ID]; ok {
			result.WorksReplaced++
		} else {
			result.WorksInserted++
		}
		s.byID[work.ID] = work.Domain
	}
	return result, nil
}

func (s *breakerStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFrom = 0
}

func (s *breakerStore) WorkCount(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)), nil
}

func (s *breakerStore) WorkCountByDomain(_ context.Context, crawlDomain string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.byID {
		if d == crawlDomain {
			n++
		}
	}
	return n, nil
}

func (s *breakerStore) WorkCountsByDomain(context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, d := range s.byID {
		counts[d]++
	}
	return counts, nil
}

func (s *breakerStore) RelationCount(context.Context) (int64, error) {
	return 0, nil
}

func (s *breakerStore) FootprintBytes(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)) * 1024, nil
}

// chaosFetcher serves scripted pages and injects per-search failures.
type chaosFetcher struct {
	mu       sync.Mutex
	pages    map[string]*openalex.Page // search|cursor -> page
	failures map[string]error          // search -> injected error
}

func newChaosFetcher() *chaosFetcher {
	return &chaosFetcher{
		pages:    make(map[string]*openalex.Page),
		failures: make(map[string]error),
	}
}

func (f *chaosFetcher) page(search, cursor string, works []openalex.Work, next string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[search+"|"+cursor] = &openalex.Page{Works: works, NextCursor: next}
}

func (f *chaosFetcher) fail(search string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[search] = err
}

func (f *chaosFetcher) heal(search string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, search)
}

func (f *chaosFetcher) ListWorks(_ context.Context, q openalex.WorksQuery) (*openalex.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failures[q.Search]; err != nil {
		return nil, err
	}
	page, ok := f.pages[q.Search+"|"+q.Cursor]
	if !ok {
		return nil, fmt.Errorf("unscripted fetch: search=%q cursor=%q", q.Search, q.Cursor)
	}
	return page, nil
}

func someWorks(prefix string, n int) []openalex.Work {
	works := make([]openalex.Work, n)
	for i := range works {
		works[i] = openalex.Work{
			ID:              fmt.Sprintf("https://openalex.org/W%s%03d", prefix, i),
			DisplayName:     fmt.Sprintf("Work %s %d", prefix, i),
			PublicationYear: 2022,
			CitedByCount:    100 - i,
		}
	}
	return works
}

func chaosConfig(t *testing.T, domains []config.DomainConfig) config.CrawlConfig {
	t.Helper()
	return config.CrawlConfig{
		Concurrency:    1,
		PageSize:       50,
		BatchSize:      50,
		PerCallCap:     1000,
		MaxAttempts:    1,
		RequestTimeout: 50 * time.Millisecond,
		CheckpointPath: filepath.Join(t.TempDir(), "crawl_progress.json"),
		SizeCeilingMB:  100000,
		Domains:        domains,
	}
}

func oneKeywordDomain(name, keyword string, weight float64) config.DomainConfig {
	return config.DomainConfig{
		Name:       name,
		Weight:     weight,
		MaxPapers:  1000,
		Keywords:   []string{keyword},
		YearRanges: []domain.YearRange{{From: 2020, To: 2024}},
	}
}

func runOnce(t *testing.T, cfg config.CrawlConfig, fetcher crawler.Fetcher, store repository.Store) (domain.StopReason, crawler.StatusReport) {
	t.Helper()
	tracker := checkpoint.NewTracker(cfg.CheckpointPath, zerolog.Nop())
	publisher := events.NewPublisher(events.Config{}, nil, zerolog.Nop())
	ctrl := crawler.New(cfg, fetcher, store, tracker, publisher, nil, zerolog.Nop())

	reason, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	return reason, ctrl.Status()
}

func taskState(t *testing.T, path, key string) domain.CrawlTask {
	t.Helper()
	tracker := checkpoint.NewTracker(path, zerolog.Nop())
	require.NoError(t, tracker.Load())
	task, ok := tracker.Task(key)
	require.True(t, ok, "task %s not in checkpoint", key)
	return task
}

func TestRateLimitedTaskIsParkedAndRecovers(t *testing.T) {
	cfg := chaosConfig(t, []config.DomainConfig{
		oneKeywordDomain("genomics", "crispr", 3.0),
		oneKeywordDomain("astronomy", "exoplanets", 1.0),
	})
	store := newBreakerStore()

	fetcher := newChaosFetcher()
	fetcher.fail("crispr", fmt.Errorf("works request: %w", domain.ErrRateLimited))
	fetcher.page("exoplanets", domain.CursorStart, someWorks("EX1", 50), "ex-c2")
	fetcher.page("exoplanets", "ex-c2", someWorks("EX2", 30), "")

	reason, status := runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)
	assert.Equal(t, 1, status.TasksParked)

	// The healthy domain finished untouched by the fault.
	count, err := store.WorkCountByDomain(context.Background(), "astronomy")
	require.NoError(t, err)
	assert.Equal(t, int64(80), count)

	// The parked task kept its start cursor and no progress was recorded.
	years := domain.YearRange{From: 2020, To: 2024}
	parked := taskState(t, cfg.CheckpointPath, domain.TaskKey("genomics", "crispr", years))
	assert.Equal(t, domain.CursorStart, parked.Cursor)
	assert.Equal(t, int64(0), parked.RecordsFetched)
	assert.False(t, parked.Completed)

	// Next run with the upstream healed completes the parked task.
	fetcher.heal("crispr")
	fetcher.page("crispr", domain.CursorStart, someWorks("CR1", 40), "")

	reason, status = runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)
	assert.Equal(t, 0, status.TasksParked)

	count, err = store.WorkCountByDomain(context.Background(), "genomics")
	require.NoError(t, err)
	assert.Equal(t, int64(40), count)
	assert.True(t, taskState(t, cfg.CheckpointPath, domain.TaskKey("genomics", "crispr", years)).Completed)
}

func TestStoreOutageReplaysFailedPageOnResume(t *testing.T) {
	cfg := chaosConfig(t, []config.DomainConfig{oneKeywordDomain("materials", "perovskite", 2.0)})

	fetcher := newChaosFetcher()
	fetcher.page("perovskite", domain.CursorStart, someWorks("PV1", 50), "pv-c2")
	fetcher.page("perovskite", "pv-c2", someWorks("PV2", 30), "")

	// The first commit lands, the second hits a store outage.
	store := newBreakerStore()
	store.failFrom = 2

	reason, status := runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)
	assert.Equal(t, 1, status.TasksParked)

	count, err := store.WorkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)

	// The failed page did not advance the cursor.
	years := domain.YearRange{From: 2020, To: 2024}
	key := domain.TaskKey("materials", "perovskite", years)
	task := taskState(t, cfg.CheckpointPath, key)
	assert.Equal(t, "pv-c2", task.Cursor)
	assert.Equal(t, int64(50), task.RecordsFetched)
	assert.False(t, task.Completed)

	// With the store healed, the next run replays the failed page and
	// nothing is lost or counted twice.
	store.heal()
	reason, _ = runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)

	count, err = store.WorkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(80), count)

	task = taskState(t, cfg.CheckpointPath, key)
	assert.True(t, task.Completed)
	assert.Equal(t, int64(80), task.RecordsFetched)
}

func TestTotalUpstreamOutageEndsRunCleanly(t *testing.T) {
	cfg := chaosConfig(t, []config.DomainConfig{
		oneKeywordDomain("ecology", "rewilding", 2.0),
		oneKeywordDomain("economics", "inflation", 1.0),
	})
	store := newBreakerStore()

	fetcher := newChaosFetcher()
	fetcher.fail("rewilding", fmt.Errorf("works request: %w", domain.ErrServiceUnavailable))
	fetcher.fail("inflation", errors.New("dial tcp: connection refused"))

	reason, status := runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)
	assert.Equal(t, 2, status.TasksParked)

	count, err := store.WorkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Both tasks are intact for the next run.
	years := domain.YearRange{From: 2020, To: 2024}
	for _, key := range []string{
		domain.TaskKey("ecology", "rewilding", years),
		domain.TaskKey("economics", "inflation", years),
	} {
		task := taskState(t, cfg.CheckpointPath, key)
		assert.Equal(t, domain.CursorStart, task.Cursor)
		assert.False(t, task.Completed)
	}

	// A healed upstream lets both finish.
	fetcher.heal("rewilding")
	fetcher.heal("inflation")
	fetcher.page("rewilding", domain.CursorStart, someWorks("RW1", 20), "")
	fetcher.page("inflation", domain.CursorStart, someWorks("IN1", 25), "")

	reason, status = runOnce(t, cfg, fetcher, store)
	assert.Equal(t, domain.StopReasonCompleted, reason)
	assert.Equal(t, 0, status.TasksParked)

	count, err = store.WorkCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(45), count)
}
