package crawler

import (
	"context"
	"errors"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// PageOutcome classifies what one processed page means for its task. The
// distinction matters for scheduling: an abandoned page parks the task for
// the rest of the run, while a call-budget yield leaves the task immediately
// reschedulable.
type PageOutcome int

const (
	// PageOK means the page committed and a next cursor exists; the task
	// continues with its next page.
	PageOK PageOutcome = iota

	// PageExhausted means the upstream sequence ended; the task is
	// completed.
	PageExhausted

	// PageCapReached means the domain's record cap was hit; the task and
	// its domain siblings are completed with cursors short of
	// end-of-sequence.
	PageCapReached

	// PageCallBudget means the activation drew its per-call record budget;
	// the task yields to the scheduler but stays incomplete and
	// schedulable.
	PageCallBudget

	// PageAbandoned means fetch attempts were exhausted; the task is
	// parked for this run and resumes from the same cursor on a future
	// run.
	PageAbandoned
)

// String returns the outcome label used in logs.
func (o PageOutcome) String() string {
	switch o {
	case PageOK:
		return "ok"
	case PageExhausted:
		return "exhausted"
	case PageCapReached:
		return "cap_reached"
	case PageCallBudget:
		return "call_budget"
	case PageAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// abandonReason maps a fetch error to the label recorded on the abandoned
// pages counter.
func abandonReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	default:
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) {
			return "upstream_status"
		}
		return "transport"
	}
}

// isCancellation reports whether a fetch error only reflects shutdown, in
// which case the task is neither failed nor parked.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
