package crawler

import (
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// State is the coordinator's current phase, exposed for status reporting.
type State string

// Coordinator states. The selecting through checkpointing cycle runs once
// per page; stopping covers the in-flight drain after a stop request.
const (
	StateIdle          State = "idle"
	StateSelecting     State = "selecting"
	StateFetching      State = "fetching"
	StateExtracting    State = "extracting"
	StatePersisting    State = "persisting"
	StateCheckpointing State = "checkpointing"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
)

// StatusReport is a point-in-time view of the run, served by the status
// endpoint and printed by the status command.
type StatusReport struct {
	State         State                   `json:"state"`
	RunID         string                  `json:"run_id,omitempty"`
	StopReason    domain.StopReason       `json:"stop_reason,omitempty"`
	Stats         domain.RunStats         `json:"stats"`
	Domains       []domain.DomainProgress `json:"domains"`
	TasksTotal    int                     `json:"tasks_total"`
	TasksPending  int                     `json:"tasks_pending"`
	TasksParked   int                     `json:"tasks_parked"`
	TasksInFlight int                     `json:"tasks_in_flight"`
}
