package domain

import "time"

// Event type constants for crawl lifecycle events.
const (
	EventTypeRunStarted     = "crawl.run_started"
	EventTypeBatchCommitted = "crawl.batch_committed"
	EventTypeTaskCompleted  = "crawl.task_completed"
	EventTypeRunStopped     = "crawl.run_stopped"
)

// CrawlEvent is the envelope published for every crawl lifecycle event.
// Fields that do not apply to a given event type are left zero and omitted
// from the serialized form.
type CrawlEvent struct {
	Type         string     `json:"type"`
	RunID        string     `json:"run_id"`
	Domain       string     `json:"domain,omitempty"`
	Keyword      string     `json:"keyword,omitempty"`
	Years        *YearRange `json:"years,omitempty"`
	Records      int64      `json:"records,omitempty"`
	TotalRecords int64      `json:"total_records,omitempty"`
	SizeMB       float64    `json:"size_mb,omitempty"`
	StopReason   StopReason `json:"stop_reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}
