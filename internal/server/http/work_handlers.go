package httpserver

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/repository"
)

// Pagination constants for the works listing.
const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// listWorksHandler handles GET /api/v1/works. It returns a paginated list
// of ingested works, most cited first, with optional ?domain=, ?year=, and
// ?min_citations= filters.
func (s *Server) listWorksHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	filter := repository.WorkFilter{
		Limit:  limit,
		Offset: offset,
	}

	if domainParam := r.URL.Query().Get("domain"); domainParam != "" {
		filter.Domain = &domainParam
	}
	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		filter.Year = &year
	}
	if minParam := r.URL.Query().Get("min_citations"); minParam != "" {
		min, err := strconv.Atoi(minParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_citations must be an integer")
			return
		}
		filter.MinCitations = &min
	}

	works, totalCount, err := s.works.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]workResponse, len(works))
	for i, work := range works {
		responses[i] = workToResponse(work)
	}

	writeJSON(w, http.StatusOK, listWorksResponse{
		Works:         responses,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// getWorkHandler handles GET /api/v1/works/{workID}. The path parameter is
// the short identifier, e.g. W2741809807.
func (s *Server) getWorkHandler(w http.ResponseWriter, r *http.Request) {
	work, err := s.works.GetByShortID(r.Context(), chi.URLParam(r, "workID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workToResponse(work))
}

// listWorkRelationsHandler handles GET /api/v1/works/{workID}/relations.
// It returns the citation edges originating at a work.
func (s *Server) listWorkRelationsHandler(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")

	// Resolve the work first so a missing identifier is a 404, not an
	// empty list.
	if _, err := s.works.GetByShortID(r.Context(), workID); err != nil {
		writeDomainError(w, err)
		return
	}

	relations, err := s.relations.ListFrom(r.Context(), workID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]relationResponse, len(relations))
	for i, rel := range relations {
		responses[i] = relationResponse{
			FromID: rel.FromID,
			ToID:   rel.ToID,
			Type:   string(rel.Type),
		}
	}

	writeJSON(w, http.StatusOK, listRelationsResponse{
		Relations:  responses,
		TotalCount: len(responses),
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a
// JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns
// an empty string if there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
