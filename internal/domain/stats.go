package domain

import "time"

// StopReason records why a run loop terminated. Budget and signal stops are
// controlled run boundaries, not failures.
type StopReason string

// Stop reason constants.
const (
	StopReasonCompleted StopReason = "completed"
	StopReasonBudget    StopReason = "budget"
	StopReasonSignal    StopReason = "signal"
)

// RunStats aggregates the counters reported for one ingestion run. The
// committed totals are recomputed from the store on restart; the checkpoint
// file is authoritative for cursors only.
type RunStats struct {
	RunID            string    `json:"run_id,omitempty"`
	TotalRecords     int64     `json:"total_records"`
	TotalSizeMB      float64   `json:"total_size_mb"`
	DomainsCompleted int       `json:"domains_completed"`
	StartedAt        time.Time `json:"started_at"`
	LastCheckpoint   time.Time `json:"last_checkpoint"`
}

// DomainProgress summarizes one domain for status reporting.
type DomainProgress struct {
	Domain         string  `json:"domain"`
	Records        int64   `json:"records"`
	MaxRecords     int64   `json:"max_records"`
	Percent        float64 `json:"percent"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
}
