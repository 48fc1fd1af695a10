package httpserver

import (
	"time"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// Task and stop response types for JSON serialization.

type taskResponse struct {
	Key            string    `json:"key"`
	Domain         string    `json:"domain"`
	Keyword        string    `json:"keyword"`
	Years          string    `json:"years"`
	Cursor         string    `json:"cursor,omitempty"`
	RecordsFetched int64     `json:"records_fetched"`
	Completed      bool      `json:"completed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type listTasksResponse struct {
	Tasks      []taskResponse `json:"tasks"`
	TotalCount int            `json:"total_count"`
}

type stopResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type workResponse struct {
	ID            string           `json:"id"`
	ShortID       string           `json:"short_id"`
	Title         string           `json:"title"`
	Authors       []authorResponse `json:"authors,omitempty"`
	Year          int              `json:"year,omitempty"`
	Venue         string           `json:"venue,omitempty"`
	Abstract      string           `json:"abstract,omitempty"`
	DOI           string           `json:"doi,omitempty"`
	CitationCount int              `json:"citation_count"`
	ResearchField string           `json:"research_field,omitempty"`
	Domain        string           `json:"domain"`
	URL           string           `json:"url,omitempty"`
	IngestedAt    time.Time        `json:"ingested_at"`
}

type authorResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	ORCID string `json:"orcid,omitempty"`
}

type listWorksResponse struct {
	Works         []workResponse `json:"works"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	TotalCount    int            `json:"total_count"`
}

type relationResponse struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"type"`
}

type listRelationsResponse struct {
	Relations  []relationResponse `json:"relations"`
	TotalCount int                `json:"total_count"`
}

func taskToResponse(task domain.CrawlTask) taskResponse {
	return taskResponse{
		Key:            task.Key(),
		Domain:         task.Domain,
		Keyword:        task.Keyword,
		Years:          task.Years.String(),
		Cursor:         task.Cursor,
		RecordsFetched: task.RecordsFetched,
		Completed:      task.Completed,
		UpdatedAt:      task.UpdatedAt,
	}
}

func workToResponse(work *domain.Work) workResponse {
	authors := make([]authorResponse, len(work.Authors))
	for i, author := range work.Authors {
		authors[i] = authorResponse{
			ID:    author.ID,
			Name:  author.Name,
			ORCID: author.ORCID,
		}
	}
	return workResponse{
		ID:            work.ID,
		ShortID:       work.ShortID,
		Title:         work.Title,
		Authors:       authors,
		Year:          work.Year,
		Venue:         work.Venue,
		Abstract:      work.Abstract,
		DOI:           work.DOI,
		CitationCount: work.CitationCount,
		ResearchField: work.ResearchField,
		Domain:        work.Domain,
		URL:           work.URL,
		IngestedAt:    work.IngestedAt,
	}
}
