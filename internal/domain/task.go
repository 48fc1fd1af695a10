package domain

import (
	"fmt"
	"time"
)

// CursorStart is the upstream cursor value denoting the start of a result
// sequence.
const CursorStart = "*"

// YearRange is an inclusive publication-year filter.
type YearRange struct {
	From int `json:"from" mapstructure:"from"`
	To   int `json:"to" mapstructure:"to"`
}

// String formats the range as "2015-2024".
func (r YearRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// CrawlTask is the unit of schedulable work: one (domain, keyword, year
// range) combination with its pagination state. Tasks are enumerated once
// from the domain catalog and afterwards only mutated: the cursor advances,
// RecordsFetched accumulates, and Completed flips to true exactly once.
type CrawlTask struct {
	Domain         string    `json:"domain"`
	Keyword        string    `json:"keyword"`
	Years          YearRange `json:"years"`
	Cursor         string    `json:"cursor"`
	RecordsFetched int64     `json:"records_fetched"`
	Completed      bool      `json:"completed"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// NewCrawlTask returns a task positioned at the start of its sequence.
func NewCrawlTask(domain, keyword string, years YearRange) *CrawlTask {
	return &CrawlTask{
		Domain:  domain,
		Keyword: keyword,
		Years:   years,
		Cursor:  CursorStart,
	}
}

// Key returns the stable task identity used as the checkpoint key. It is
// derived purely from the task's coordinates and survives restarts.
func (t *CrawlTask) Key() string {
	return TaskKey(t.Domain, t.Keyword, t.Years)
}

// TaskKey builds the checkpoint key for a (domain, keyword, year range)
// combination.
func TaskKey(domain, keyword string, years YearRange) string {
	return fmt.Sprintf("%s_%s_%d_%d", domain, keyword, years.From, years.To)
}
