package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/observability"
)

// maxRequestBodySize bounds request bodies; the stop body is a short note.
const maxRequestBodySize = 1 << 20

// stopRequest is the optional JSON request body for a graceful stop.
type stopRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// statusHandler handles GET /api/v1/status. It returns the controller's
// point-in-time view: state, run stats, and per-domain progress.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// listTasksHandler handles GET /api/v1/tasks. It returns the checkpointed
// task list, optionally filtered by ?domain= and ?completed=.
func (s *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	domainFilter := r.URL.Query().Get("domain")

	var completedFilter *bool
	if completedParam := r.URL.Query().Get("completed"); completedParam != "" {
		completed, err := strconv.ParseBool(completedParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "completed must be a boolean")
			return
		}
		completedFilter = &completed
	}

	tasks := s.tracker.Snapshot()
	responses := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		if domainFilter != "" && task.Domain != domainFilter {
			continue
		}
		if completedFilter != nil && task.Completed != *completedFilter {
			continue
		}
		responses = append(responses, taskToResponse(task))
	}

	writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:      responses,
		TotalCount: len(responses),
	})
}

// stopHandler handles POST /api/v1/stop. It requests a graceful stop: the
// run finishes in-flight pages, checkpoints, and exits. The optional JSON
// body carries an operator note for the log.
func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if r.Body != nil && r.ContentLength != 0 {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
		if err := s.validate.Struct(&req); err != nil {
			writeError(w, http.StatusBadRequest, "reason must be at most 500 characters")
			return
		}
	}

	event := s.logger.Info().Str("correlation_id", observability.RequestIDFromContext(r.Context()))
	if req.Reason != "" {
		event = event.Str("reason", req.Reason)
	}
	event.Msg("stop requested over HTTP")

	s.controller.RequestStop()

	writeJSON(w, http.StatusAccepted, stopResponse{
		Status:  "stopping",
		Message: "stop requested; the run finishes in-flight pages and checkpoints before exiting",
	})
}
