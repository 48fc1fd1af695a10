package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/upstream/openalex"
)

// Fetcher is the single upstream operation the controller needs.
// *openalex.Client satisfies it.
type Fetcher interface {
	ListWorks(ctx context.Context, q openalex.WorksQuery) (*openalex.Page, error)
}

// fetchRequest is one page fetch handed to the pool.
type fetchRequest struct {
	key   string
	query openalex.WorksQuery
}

// fetchResult is the pool's reply to one request.
type fetchResult struct {
	key      string
	page     *openalex.Page
	err      error
	duration time.Duration
}

// fetchPool runs a fixed number of fetch workers over a shared client. The
// pool size is the only fetch parallelism in the crawler; pacing and retries
// live inside the client. The results channel is buffered to pool size, and
// the coordinator keeps at most one in-flight page per claimed task, so
// workers never block handing a result back.
type fetchPool struct {
	client Fetcher
	size   int
	logger zerolog.Logger

	requests chan fetchRequest
	results  chan fetchResult
	wg       sync.WaitGroup
}

func newFetchPool(client Fetcher, size int, logger zerolog.Logger) *fetchPool {
	if size < 1 {
		size = 1
	}
	return &fetchPool{
		client:   client,
		size:     size,
		logger:   logger.With().Str("component", "fetch_pool").Logger(),
		requests: make(chan fetchRequest),
		results:  make(chan fetchResult, size),
	}
}

// start launches the workers. After stop, the results channel closes once
// every in-flight fetch has finished.
func (p *fetchPool) start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// submit hands one page fetch to the pool. With claimed tasks bounded by
// pool size there is always a worker free to take it.
func (p *fetchPool) submit(req fetchRequest) {
	p.requests <- req
}

// stop closes the request channel. Workers finish their current fetch and
// exit; pending results stay readable until the channel closes.
func (p *fetchPool) stop() {
	close(p.requests)
}

func (p *fetchPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for req := range p.requests {
		start := time.Now()
		page, err := p.client.ListWorks(ctx, req.query)
		elapsed := time.Since(start)

		fetchLogger := observability.WithFetchContext(p.logger, "openalex", req.query.Cursor)
		fetchLogger.Debug().
			Int("worker", id).
			Str("task", req.key).
			Dur("duration", elapsed).
			Err(err).
			Msg("page fetch finished")

		p.results <- fetchResult{key: req.key, page: page, err: err, duration: elapsed}
	}
}
