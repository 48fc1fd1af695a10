// Package crawler drives the ingestion run. A single coordinator goroutine
// selects tasks, dispatches page fetches onto a bounded worker pool, and
// alone performs extraction, persistence, and checkpointing. Concurrency
// exists only between outbound fetches: every store and checkpoint write is
// serialized through the coordinator, and pages within one task are
// processed strictly in cursor order because a task never has more than one
// page in flight.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/checkpoint"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/config"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/events"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/governor"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/repository"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/scheduler"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/upstream/openalex"
)

// activation is one claim of a task by the coordinator: the working copy of
// the task plus the records drawn since it was claimed.
type activation struct {
	task  domain.CrawlTask
	drawn int64
}

// Controller owns the run loop. Construct with New, then call Run once.
// Status and RequestStop are safe from other goroutines.
type Controller struct {
	cfg        config.CrawlConfig
	client     Fetcher
	store      repository.Store
	tracker    *checkpoint.Tracker
	sched      *scheduler.Scheduler
	governor   *governor.Governor
	publisher  *events.Publisher
	metrics    *observability.Metrics
	logger     zerolog.Logger
	baseLogger zerolog.Logger

	pool *fetchPool

	mu            sync.Mutex
	state         State
	runID         string
	stopRequested bool
	stopReason    domain.StopReason
	claimed       map[string]*activation
	parked        map[string]bool
	domainRecords map[string]int64

	// run counters for the final report
	pagesCommitted int64
	pagesAbandoned int64
	recsFetched    int64
	recsInserted   int64
	recsReplaced   int64
	relsWritten    int64
}

// New creates a run controller. The scheduler and size governor are built
// from the crawl config. Metrics may be nil; the publisher must not be
// (pass a disabled publisher to turn event delivery off).
func New(
	cfg config.CrawlConfig,
	client Fetcher,
	store repository.Store,
	tracker *checkpoint.Tracker,
	publisher *events.Publisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Controller {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Controller{
		cfg:           cfg,
		client:        client,
		store:         store,
		tracker:       tracker,
		sched:         scheduler.New(cfg.Domains),
		governor:      governor.New(store, cfg.SizeCeilingMB, metrics, logger),
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger.With().Str("component", "crawler").Logger(),
		baseLogger:    logger,
		state:         StateIdle,
		claimed:       make(map[string]*activation),
		parked:        make(map[string]bool),
		domainRecords: make(map[string]int64),
	}
}

// Run executes the crawl until all tasks complete, the size ceiling is
// reached, or a stop is requested. It returns the stop reason. An error
// means the run could not start (unreadable checkpoint, unreachable store),
// never a routine task failure.
func (c *Controller) Run(ctx context.Context) (domain.StopReason, error) {
	if err := c.tracker.Load(); err != nil {
		return "", err
	}
	seeded := c.tracker.Seed(c.sched.Enumerate())

	if err := c.prepareRun(ctx, seeded); err != nil {
		return "", err
	}

	// Workers outlive the run context so an in-flight page can finish and
	// be drained after a stop; the drain cancels stragglers after a grace
	// period.
	poolCtx, poolCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer poolCancel()
	c.pool = newFetchPool(c.client, c.cfg.Concurrency, observability.WithRunContext(c.baseLogger, c.RunID()))
	c.pool.start(poolCtx)

	c.publisher.RunStarted(ctx, c.RunID())
	c.logger.Info().
		Str("run_id", c.RunID()).
		Int("concurrency", c.cfg.Concurrency).
		Int("seeded_tasks", seeded).
		Int64("size_ceiling_mb", c.cfg.SizeCeilingMB).
		Msg("ingestion run starting")

	c.loop(ctx)
	c.drain(poolCancel)
	return c.finish()
}

// prepareRun recomputes run stats from the store, which is authoritative
// for committed totals, and persists the seeded task map once.
func (c *Controller) prepareRun(ctx context.Context, seeded int) error {
	counts, err := c.store.WorkCountsByDomain(ctx)
	if err != nil {
		return fmt.Errorf("count stored records: %w", err)
	}

	var total int64
	c.mu.Lock()
	for name, n := range counts {
		c.domainRecords[name] = n
		total += n
	}
	c.runID = uuid.New().String()
	runID := c.runID
	c.mu.Unlock()

	size, err := c.governor.Usage(ctx)
	if err != nil {
		return fmt.Errorf("measure store footprint: %w", err)
	}

	stats := c.tracker.Stats()
	stats.RunID = runID
	stats.TotalRecords = total
	stats.TotalSizeMB = float64(size) / (1 << 20)
	stats.StartedAt = time.Now().UTC()
	stats.DomainsCompleted = completedDomains(c.tracker.Snapshot())
	c.tracker.SetStats(stats)

	if err := c.tracker.Save(); err != nil {
		return fmt.Errorf("write initial checkpoint: %w", err)
	}

	if seeded > 0 {
		c.logger.Info().Int("tasks", seeded).Msg("seeded new tasks from catalog")
	}
	return nil
}

// loop is the coordinator cycle: fill free fetch slots, then process one
// result. Stop requests are honored at the loop top and at page boundaries.
func (c *Controller) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.requestStop(domain.StopReasonSignal, "shutdown signal")
		}
		if c.stopping() {
			return
		}

		c.setState(StateSelecting)
		c.fillSlots(ctx)
		if c.stopping() {
			return
		}

		if c.inFlight() == 0 {
			c.requestStop(domain.StopReasonCompleted, "no schedulable tasks remain")
			if parked := c.parkedCount(); parked > 0 {
				c.logger.Warn().
					Int("parked_tasks", parked).
					Msg("run finished with parked tasks; they resume on the next run")
			}
			return
		}

		c.setState(StateFetching)
		select {
		case <-ctx.Done():
			c.requestStop(domain.StopReasonSignal, "shutdown signal")
		case res := <-c.pool.results:
			c.handleResult(ctx, res)
		}
	}
}

// fillSlots claims tasks for free workers. The size governor is consulted
// before every claim; a veto converts into a budget stop.
func (c *Controller) fillSlots(ctx context.Context) {
	for c.inFlight() < c.cfg.Concurrency {
		if !c.budgetAllows(ctx) {
			c.requestStop(domain.StopReasonBudget, "storage ceiling reached")
			return
		}

		next := c.sched.Next(c.tracker.Snapshot(), c.busyKeys(), c.snapshotDomainRecords())
		if next == nil {
			return
		}
		c.claim(*next)
	}
}

// claim marks a task in flight and submits its next page.
func (c *Controller) claim(task domain.CrawlTask) {
	key := task.Key()

	c.mu.Lock()
	c.claimed[key] = &activation{task: task}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.TaskStarted()
	}
	taskLogger := observability.WithTaskContext(c.logger, task.Domain, task.Keyword, task.Years.String())
	taskLogger.Debug().
		Str("cursor", task.Cursor).
		Int64("records_fetched", task.RecordsFetched).
		Msg("task claimed")

	c.submitPage(key, task)
}

func (c *Controller) submitPage(key string, task domain.CrawlTask) {
	c.pool.submit(fetchRequest{
		key: key,
		query: openalex.WorksQuery{
			Search: task.Keyword,
			Years:  task.Years,
			Cursor: task.Cursor,
		},
	})
}

// handleResult lands one fetched page: extract, persist in batches,
// checkpoint once, then settle how the task continues. During the final
// drain the caller passes a fresh context so fetched pages still commit
// after the run context is cancelled.
func (c *Controller) handleResult(ctx context.Context, res fetchResult) {
	act := c.activationFor(res.key)
	if act == nil {
		c.logger.Error().Str("task", res.key).Msg("result for unclaimed task dropped")
		return
	}

	if res.err != nil {
		c.handleFetchFailure(res, act)
		return
	}

	fetched := len(res.page.Works)
	if c.metrics != nil {
		c.metrics.RecordPageFetched(act.task.Domain, fetched, res.duration.Seconds())
	}

	c.setState(StateExtracting)
	works := c.extractPage(res.page.Works, act.task.Domain)

	c.setState(StatePersisting)
	committed, err := c.persistPage(ctx, works, act.task.Domain)
	if err != nil {
		c.logger.Error().Err(err).Str("task", res.key).Msg("store write failed, task parked")
		c.park(res.key, "store_failure")
		return
	}

	c.setState(StateCheckpointing)
	c.advance(ctx, act, res.page.NextCursor, int64(fetched), committed)
}

// handleFetchFailure settles a page whose fetch did not succeed.
func (c *Controller) handleFetchFailure(res fetchResult, act *activation) {
	if isCancellation(res.err) {
		// Shutdown took the fetch down, not the task. The cursor stays put
		// and the task resumes on the next run without being parked.
		c.unclaim(res.key)
		c.logger.Debug().Str("task", res.key).Msg("in-flight fetch cancelled by shutdown")
		return
	}

	reason := abandonReason(res.err)
	c.logger.Warn().
		Err(res.err).
		Str("task", res.key).
		Str("reason", reason).
		Str("cursor", act.task.Cursor).
		Str("outcome", PageAbandoned.String()).
		Msg("page abandoned, task parked for this run")
	c.park(res.key, reason)
}

// extractPage normalizes raw works. Items without an identifier are
// skipped, never fatal.
func (c *Controller) extractPage(raw []openalex.Work, crawlDomain string) []*domain.Work {
	works := make([]*domain.Work, 0, len(raw))
	skipped := 0
	for i := range raw {
		work, err := openalex.ExtractWork(&raw[i], crawlDomain)
		if err != nil {
			skipped++
			workLogger := observability.WithWorkContext(c.logger, raw[i].ID, raw[i].DOI)
			workLogger.Debug().
				Msg("skipped item missing identifier")
			continue
		}
		works = append(works, work)
	}

	if skipped > 0 {
		c.logger.Warn().
			Int("skipped", skipped).
			Str("domain", crawlDomain).
			Msg("items without identifier skipped")
	}
	return works
}

// persistPage writes a page's works in bounded batches, each one store
// transaction carrying the relation edges of its own works. A failed batch
// stops the page before the checkpoint advances; the committed prefix is
// harmless because the next run re-upserts the same page idempotently.
func (c *Controller) persistPage(ctx context.Context, works []*domain.Work, crawlDomain string) (repository.BatchResult, error) {
	var total repository.BatchResult

	batchSize := c.cfg.BatchSize
	if batchSize < 1 {
		batchSize = len(works)
	}

	for start := 0; start < len(works); start += batchSize {
		end := start + batchSize
		if end > len(works) {
			end = len(works)
		}
		chunk := works[start:end]

		var relations []domain.Relation
		if c.cfg.TrackRelations {
			for _, work := range chunk {
				relations = append(relations, openalex.RelationsFromWork(work)...)
			}
		}

		began := time.Now()
		result, err := c.store.CommitBatch(ctx, chunk, relations)
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordStoreBatchFailure()
			}
			return total, fmt.Errorf("commit batch [%d:%d]: %w", start, end, err)
		}

		if c.metrics != nil {
			c.metrics.RecordBatchCommitted(crawlDomain, result.WorksInserted, result.WorksReplaced, time.Since(began).Seconds())
			if result.RelationsWritten > 0 {
				c.metrics.RecordRelationsWritten(int(result.RelationsWritten))
			}
		}

		total.WorksInserted += result.WorksInserted
		total.WorksReplaced += result.WorksReplaced
		total.RelationsWritten += result.RelationsWritten
	}

	return total, nil
}

// advance moves the checkpoint past a committed page and settles the
// task's outcome.
func (c *Controller) advance(ctx context.Context, act *activation, nextCursor string, fetched int64, committed repository.BatchResult) {
	key := act.task.Key()
	crawlDomain := act.task.Domain

	c.mu.Lock()
	c.domainRecords[crawlDomain] += int64(committed.WorksInserted)
	domainTotal := c.domainRecords[crawlDomain]
	c.pagesCommitted++
	c.recsFetched += fetched
	c.recsInserted += int64(committed.WorksInserted)
	c.recsReplaced += int64(committed.WorksReplaced)
	c.relsWritten += committed.RelationsWritten
	c.mu.Unlock()

	if nextCursor != "" && nextCursor == act.task.Cursor {
		// An upstream cursor that does not move would loop forever.
		c.logger.Warn().Str("task", key).Msg("cursor did not advance, treating sequence as exhausted")
		nextCursor = ""
	}

	act.drawn += fetched
	act.task.RecordsFetched += fetched
	act.task.Cursor = nextCursor

	outcome := c.classify(act, nextCursor, crawlDomain, domainTotal)
	completedTask := outcome == PageExhausted || outcome == PageCapReached

	if err := c.tracker.Update(key, nextCursor, fetched, int64(committed.WorksInserted), completedTask); err != nil {
		// The store moved but the checkpoint did not; the page will be
		// re-fetched and re-upserted. Park the task so the run goes on.
		c.logger.Error().Err(err).Str("task", key).Msg("checkpoint update failed, task parked")
		c.park(key, "checkpoint_failure")
		return
	}

	c.publisher.BatchCommitted(ctx, c.RunID(), act.task, fetched, c.tracker.Stats().TotalRecords)

	c.logger.Info().
		Str("task", key).
		Int64("fetched", fetched).
		Int("inserted", committed.WorksInserted).
		Int("replaced", committed.WorksReplaced).
		Int64("relations", committed.RelationsWritten).
		Int64("domain_records", domainTotal).
		Str("outcome", outcome.String()).
		Msg("page committed")

	switch outcome {
	case PageOK:
		if c.stopping() {
			c.unclaim(key)
			return
		}
		if !c.budgetAllows(ctx) {
			c.requestStop(domain.StopReasonBudget, "storage ceiling reached")
			c.unclaim(key)
			return
		}
		c.submitPage(key, act.task)
	case PageCallBudget:
		c.unclaim(key)
		c.logger.Debug().
			Str("task", key).
			Int64("drawn", act.drawn).
			Msg("task yielded its call budget")
	case PageExhausted, PageCapReached:
		c.completeTask(ctx, act, outcome)
	}
}

// classify decides a committed page's outcome in priority order: sequence
// end wins, then the domain cap, then the per-call budget.
func (c *Controller) classify(act *activation, nextCursor, crawlDomain string, domainTotal int64) PageOutcome {
	switch {
	case nextCursor == "":
		return PageExhausted
	case c.sched.Capped(crawlDomain, domainTotal):
		return PageCapReached
	case c.cfg.PerCallCap > 0 && act.drawn >= int64(c.cfg.PerCallCap):
		return PageCallBudget
	default:
		return PageOK
	}
}

// completeTask settles a finished task. A domain-cap completion also flips
// the domain's remaining tasks so the scheduler stops revisiting them.
func (c *Controller) completeTask(ctx context.Context, act *activation, outcome PageOutcome) {
	key := act.task.Key()
	crawlDomain := act.task.Domain
	c.unclaim(key)

	if outcome == PageCapReached {
		flipped, err := c.tracker.CompleteDomain(crawlDomain)
		if err != nil {
			c.logger.Error().Err(err).Str("domain", crawlDomain).Msg("failed to complete capped domain")
		} else if flipped > 0 {
			c.logger.Info().
				Str("domain", crawlDomain).
				Int("tasks", flipped).
				Msg("domain reached its record cap")
		}
	}

	if c.metrics != nil {
		c.metrics.RecordTaskCompleted(crawlDomain)
	}

	c.refreshStats(ctx)
	c.publisher.TaskCompleted(ctx, c.RunID(), act.task, c.tracker.Stats().TotalRecords)

	c.logger.Info().
		Str("task", key).
		Str("outcome", outcome.String()).
		Int64("records_fetched", act.task.RecordsFetched).
		Msg("task completed")

	c.logProgress()
}

// budgetAllows consults the governor. Measurement failures do not stop the
// run; an unmeasurable store is logged and treated as within budget.
func (c *Controller) budgetAllows(ctx context.Context) bool {
	ok, err := c.governor.WithinBudget(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not measure store footprint")
		return true
	}
	return ok
}

// drain closes the pool and lands every already-fetched page. Store and
// checkpoint writes get a fresh bounded context because the run context is
// usually cancelled by the time a signal stop reaches here. Workers get a
// grace period to finish their current fetch before being cancelled.
func (c *Controller) drain(poolCancel context.CancelFunc) {
	c.setState(StateStopping)
	c.pool.stop()

	grace := c.cfg.RequestTimeout
	if grace <= 0 {
		grace = 30 * time.Second
	}
	watchdog := time.AfterFunc(grace, poolCancel)
	defer watchdog.Stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*grace)
	defer cancel()

	for res := range c.pool.results {
		c.handleResult(drainCtx, res)
	}
}

// finish writes the final checkpoint, publishes the run-stopped event, and
// logs the closing report.
func (c *Controller) finish() (domain.StopReason, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.refreshStats(ctx)
	stats := c.tracker.Stats()
	if err := c.tracker.Save(); err != nil {
		c.logger.Error().Err(err).Msg("failed to write final checkpoint")
	}

	c.mu.Lock()
	if c.stopReason == "" {
		c.stopReason = domain.StopReasonCompleted
	}
	reason := c.stopReason
	c.state = StateStopped
	pages := c.pagesCommitted
	abandoned := c.pagesAbandoned
	fetched := c.recsFetched
	inserted := c.recsInserted
	replaced := c.recsReplaced
	relations := c.relsWritten
	parked := len(c.parked)
	c.mu.Unlock()

	c.publisher.RunStopped(ctx, stats.RunID, reason, stats)

	c.logger.Info().
		Str("run_id", stats.RunID).
		Str("stop_reason", string(reason)).
		Int64("pages_committed", pages).
		Int64("pages_abandoned", abandoned).
		Int64("records_fetched", fetched).
		Int64("records_inserted", inserted).
		Int64("records_replaced", replaced).
		Int64("relations_written", relations).
		Int("parked_tasks", parked).
		Int64("total_records", stats.TotalRecords).
		Float64("size_mb", stats.TotalSizeMB).
		Dur("elapsed", time.Since(stats.StartedAt)).
		Msg("ingestion run stopped")

	return reason, nil
}

// refreshStats folds the current footprint and domain completion into the
// persisted stats; the next checkpoint write carries them.
func (c *Controller) refreshStats(ctx context.Context) {
	stats := c.tracker.Stats()
	stats.DomainsCompleted = completedDomains(c.tracker.Snapshot())
	if size, err := c.governor.Usage(ctx); err == nil {
		stats.TotalSizeMB = float64(size) / (1 << 20)
	}
	c.tracker.SetStats(stats)
}

// logProgress emits the per-domain progress report.
func (c *Controller) logProgress() {
	progress := c.sched.Progress(c.tracker.Snapshot(), c.snapshotDomainRecords())
	stats := c.tracker.Stats()

	c.logger.Info().
		Int64("total_records", stats.TotalRecords).
		Float64("size_mb", stats.TotalSizeMB).
		Int("domains_completed", stats.DomainsCompleted).
		Interface("domains", progress).
		Msg("progress report")
}

// RequestStop asks the run to stop at the next page boundary. Safe from any
// goroutine; used by the operator stop endpoint.
func (c *Controller) RequestStop() {
	c.requestStop(domain.StopReasonSignal, "operator stop request")
}

// requestStop latches the stop flag; the first reason wins.
func (c *Controller) requestStop(reason domain.StopReason, cause string) {
	c.mu.Lock()
	if c.stopRequested {
		c.mu.Unlock()
		return
	}
	c.stopRequested = true
	c.stopReason = reason
	c.mu.Unlock()

	c.logger.Info().
		Str("reason", string(reason)).
		Str("cause", cause).
		Msg("stop requested")
}

// RunID returns the current run identifier, empty before Run.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Status assembles a point-in-time view of the run. Safe to call from any
// goroutine, including while the run loop is active.
func (c *Controller) Status() StatusReport {
	snapshot := c.tracker.Snapshot()
	records := c.snapshotDomainRecords()

	c.mu.Lock()
	report := StatusReport{
		State:         c.state,
		RunID:         c.runID,
		StopReason:    c.stopReason,
		TasksParked:   len(c.parked),
		TasksInFlight: len(c.claimed),
	}
	c.mu.Unlock()

	report.Stats = c.tracker.Stats()
	report.Domains = c.sched.Progress(snapshot, records)
	report.TasksTotal = len(snapshot)
	report.TasksPending = c.sched.Pending(snapshot, records)
	return report
}

// park removes a task from flight for the rest of the run. The checkpoint
// is untouched, so the next run resumes from the same cursor.
func (c *Controller) park(key, reason string) {
	c.mu.Lock()
	delete(c.claimed, key)
	c.parked[key] = true
	c.pagesAbandoned++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordPageAbandoned(reason)
		c.metrics.TaskFinished()
	}
}

// unclaim releases a task without parking it.
func (c *Controller) unclaim(key string) {
	c.mu.Lock()
	delete(c.claimed, key)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.TaskFinished()
	}
}

func (c *Controller) activationFor(key string) *activation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed[key]
}

func (c *Controller) stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claimed)
}

func (c *Controller) parkedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.parked)
}

// busyKeys merges claimed and parked tasks into the set the scheduler must
// not hand out.
func (c *Controller) busyKeys() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	busy := make(map[string]bool, len(c.claimed)+len(c.parked))
	for key := range c.claimed {
		busy[key] = true
	}
	for key := range c.parked {
		busy[key] = true
	}
	return busy
}

func (c *Controller) snapshotDomainRecords() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make(map[string]int64, len(c.domainRecords))
	for name, n := range c.domainRecords {
		records[name] = n
	}
	return records
}

// completedDomains counts domains whose every task is completed.
func completedDomains(tasks []domain.CrawlTask) int {
	total := make(map[string]int)
	done := make(map[string]int)
	for _, task := range tasks {
		total[task.Domain]++
		if task.Completed {
			done[task.Domain]++
		}
	}

	n := 0
	for name, count := range total {
		if done[name] == count {
			n++
		}
	}
	return n
}
