package domain

import (
	"strings"
	"time"
)

// Author represents one entry of a work's ordered author list.
type Author struct {
	ID          string `json:"author_id,omitempty"`
	Name        string `json:"name"`
	ORCID       string `json:"orcid,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	Country     string `json:"country,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// Work is the normalized form of one upstream bibliographic record, exactly
// as it is persisted. ID is the fully-qualified upstream identifier and the
// primary key; ShortID is its last path segment and carries a unique index.
// Re-ingesting the same ID replaces the row in full.
type Work struct {
	ID                 string
	ShortID            string
	Title              string
	Authors            []Author
	AuthorNames        string
	Year               int
	PublicationDate    string
	Venue              string
	VenueISSNs         []string
	VenueHost          string
	Abstract           string
	Keywords           []string
	ResearchField      string
	PrimaryTopic       string
	Topics             []string
	DOI                string
	CitationCount      int
	FWCI               *float64
	CitationPercentile *float64
	ReferencedWorks    []string
	URL                string
	Domain             string
	IngestedAt         time.Time
}

// Validate checks the invariants required before a work may be persisted.
func (w *Work) Validate() error {
	if w == nil {
		return NewValidationError("work", "must not be nil")
	}
	if strings.TrimSpace(w.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	if strings.TrimSpace(w.ShortID) == "" {
		return NewValidationError("short_id", "must not be empty")
	}
	if strings.TrimSpace(w.Domain) == "" {
		return NewValidationError("domain", "must not be empty")
	}
	return nil
}

// JoinAuthorNames builds the display form of an author list, matching the
// "; "-separated author_names column.
func JoinAuthorNames(authors []Author) string {
	if len(authors) == 0 {
		return ""
	}
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, "; ")
}
