// Package checkpoint persists crawl progress to a JSON file so an
// interrupted run resumes from its last committed page instead of
// refetching from the start.
//
// The file holds the full task map (cursor, fetched count, completed flag
// per task) plus informational run stats. Every save rewrites the whole
// document to a temporary file and renames it into place, so a crash mid
// write can never leave a half-written checkpoint behind. A checkpoint is
// only advanced after the matching store commit; a crash between the two
// re-fetches at most one page, which the idempotent upsert absorbs.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// checkpointFile is the on-disk document layout.
type checkpointFile struct {
	Tasks   map[string]*domain.CrawlTask `json:"tasks"`
	Stats   domain.RunStats              `json:"stats"`
	SavedAt time.Time                    `json:"saved_at"`
}

// Tracker is the file-backed checkpoint. All methods are safe for
// concurrent use; the coordinator mutates while status readers snapshot.
type Tracker struct {
	path   string
	logger zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*domain.CrawlTask
	stats domain.RunStats
}

// NewTracker creates a tracker over the given checkpoint path. Call Load
// before anything else.
func NewTracker(path string, logger zerolog.Logger) *Tracker {
	return &Tracker{
		path:   path,
		logger: logger.With().Str("component", "checkpoint").Logger(),
		tasks:  make(map[string]*domain.CrawlTask),
	}
}

// Path returns the checkpoint file location.
func (t *Tracker) Path() string {
	return t.path
}

// Load reads the checkpoint file into memory. A missing file is a fresh
// start, not an error. An unreadable or undecodable file returns
// domain.ErrCheckpointCorrupt; silently reinitializing over a corrupt
// checkpoint would restart every task from scratch, so callers must treat
// that as fatal.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.logger.Info().Str("path", t.path).Msg("no checkpoint file, starting fresh")
			return nil
		}
		return domain.NewCheckpointCorruptError(t.path, err)
	}

	var doc checkpointFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.NewCheckpointCorruptError(t.path, err)
	}

	if doc.Tasks == nil {
		doc.Tasks = make(map[string]*domain.CrawlTask)
	}
	t.tasks = doc.Tasks
	t.stats = doc.Stats

	t.logger.Info().
		Str("path", t.path).
		Int("tasks", len(t.tasks)).
		Int("completed", countCompleted(t.tasks)).
		Time("saved_at", doc.SavedAt).
		Msg("checkpoint loaded")

	return nil
}

// Save writes the current state to disk atomically.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

// saveLocked writes the document to <path>.tmp and renames it over the
// checkpoint path. Callers must hold t.mu.
func (t *Tracker) saveLocked() error {
	doc := checkpointFile{
		Tasks:   t.tasks,
		Stats:   t.stats,
		SavedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}

// Seed inserts tasks that are not yet tracked and returns how many were
// added. Existing entries win, so a restart keeps its cursors while newly
// configured (domain, keyword, year range) combinations still join the run.
// Seed does not save; callers persist once after seeding.
func (t *Tracker) Seed(tasks []*domain.CrawlTask) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, task := range tasks {
		if task == nil {
			continue
		}
		key := task.Key()
		if _, ok := t.tasks[key]; ok {
			continue
		}
		clone := *task
		t.tasks[key] = &clone
		added++
	}
	return added
}

// Task returns a copy of one tracked task.
func (t *Tracker) Task(key string) (domain.CrawlTask, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[key]
	if !ok {
		return domain.CrawlTask{}, false
	}
	return *task, true
}

// Snapshot returns copies of all tracked tasks, ordered by key.
func (t *Tracker) Snapshot() []domain.CrawlTask {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.tasks))
	for key := range t.tasks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tasks := make([]domain.CrawlTask, 0, len(keys))
	for _, key := range keys {
		tasks = append(tasks, *t.tasks[key])
	}
	return tasks
}

// Update advances one task after its page committed: the cursor moves, the
// task's fetched count grows by fetched, the run's stored-record total grows
// by stored (new rows only, replacements excluded), and completed is
// recorded. The whole document is saved before Update returns, keeping
// cursor and counts in one atomic step.
func (t *Tracker) Update(key, cursor string, fetched, stored int64, completed bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[key]
	if !ok {
		return domain.NewNotFoundError("task", key)
	}

	task.Cursor = cursor
	task.RecordsFetched += fetched
	task.Completed = completed
	task.UpdatedAt = time.Now().UTC()

	t.stats.TotalRecords += stored
	t.stats.LastCheckpoint = task.UpdatedAt

	return t.saveLocked()
}

// CompleteDomain marks every task of a domain completed and saves. Used
// when a domain hits its record cap with tasks still unfinished. Returns
// the number of tasks newly completed.
func (t *Tracker) CompleteDomain(crawlDomain string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flipped := 0
	now := time.Now().UTC()
	for _, task := range t.tasks {
		if task.Domain != crawlDomain || task.Completed {
			continue
		}
		task.Completed = true
		task.UpdatedAt = now
		flipped++
	}

	if flipped == 0 {
		return 0, nil
	}
	return flipped, t.saveLocked()
}

// Stats returns a copy of the persisted run stats.
func (t *Tracker) Stats() domain.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// SetStats replaces the informational run stats. The next save persists
// them; cursor state is never touched.
func (t *Tracker) SetStats(stats domain.RunStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = stats
}

func countCompleted(tasks map[string]*domain.CrawlTask) int {
	n := 0
	for _, task := range tasks {
		if task.Completed {
			n++
		}
	}
	return n
}
