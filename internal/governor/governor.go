// Package governor enforces the storage size ceiling. The crawl asks it
// before admitting a task and before each page fetch; a veto is a
// controlled stop of the run, not an error.
package governor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
)

// Sizer measures the store footprint in bytes.
type Sizer interface {
	FootprintBytes(ctx context.Context) (int64, error)
}

// Governor compares the measured store footprint against a configured
// ceiling. The ceiling sits below the operational hard cap so the run
// stops with headroom instead of hitting a disk-full failure.
type Governor struct {
	sizer        Sizer
	ceilingBytes int64
	metrics      *observability.Metrics
	logger       zerolog.Logger

	warned bool
}

// New creates a governor with the ceiling given in megabytes. A ceiling
// of zero or less disables the budget check. Metrics may be nil.
func New(sizer Sizer, ceilingMB int64, metrics *observability.Metrics, logger zerolog.Logger) *Governor {
	return &Governor{
		sizer:        sizer,
		ceilingBytes: ceilingMB * 1024 * 1024,
		metrics:      metrics,
		logger:       logger.With().Str("component", "governor").Logger(),
	}
}

// CeilingBytes returns the configured ceiling, zero when disabled.
func (g *Governor) CeilingBytes() int64 {
	if g.ceilingBytes < 0 {
		return 0
	}
	return g.ceilingBytes
}

// Usage returns the current store footprint in bytes.
func (g *Governor) Usage(ctx context.Context) (int64, error) {
	size, err := g.sizer.FootprintBytes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to measure store footprint: %w", err)
	}
	if g.metrics != nil {
		g.metrics.SetStoreFootprint(float64(size))
	}
	return size, nil
}

// WithinBudget reports whether the store is still under the ceiling.
// The first veto is logged at warn level with the measured size.
func (g *Governor) WithinBudget(ctx context.Context) (bool, error) {
	size, err := g.Usage(ctx)
	if err != nil {
		return false, err
	}

	if g.ceilingBytes <= 0 || size < g.ceilingBytes {
		g.warned = false
		return true, nil
	}

	if !g.warned {
		g.warned = true
		g.logger.Warn().
			Int64("size_bytes", size).
			Int64("ceiling_bytes", g.ceilingBytes).
			Float64("size_mb", float64(size)/(1024*1024)).
			Msg("storage ceiling reached")
	}
	return false, nil
}
