// Package observability provides logging and metrics support for the
// ingestion crawler.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for fetches, commits, and tasks
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("run_id", runID).Msg("crawl started")
//
// Add task context to logger:
//
//	logger = observability.WithTaskContext(logger, domain, keyword, years)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("crawler")
//
// Record metrics:
//
//	metrics.RecordPageFetched("physics", 200, 0.8)
//	metrics.RecordBatchCommitted("physics", 47, 3, 0.02)
//	metrics.RecordTaskCompleted("physics")
//
// # Context Helpers
//
// Store and retrieve the request correlation ID:
//
//	ctx = observability.WithRequestID(ctx, correlationID)
//
//	requestID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the crawler:
//
//   - run_id: Crawl run identifier
//   - request_id: HTTP request identifier
//   - domain: Topical domain being crawled
//   - keyword: Search keyword
//   - years: Publication-year window
//   - cursor: Upstream pagination cursor
//   - work_id: Record identifier
//   - source: Upstream source name
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
