// Package openalex provides a client for the OpenAlex works API.
//
// OpenAlex is a free, open catalog of scholarly papers, authors, venues,
// institutions, and concepts. This package implements cursor-paginated
// listing of works and the normalization of raw works into the records
// the crawler persists.
//
// API Documentation: https://docs.openalex.org/
package openalex

// ListResponse represents the top-level response from the OpenAlex works endpoint.
type ListResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the result list including cursor pagination info.
// NextCursor is empty once the sequence is exhausted.
type Meta struct {
	Count      int    `json:"count"`
	DBTime     int    `json:"db_response_time_ms"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

// Work represents an academic work (paper) in OpenAlex.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	PublicationDate string       `json:"publication_date"`
	Type            string       `json:"type"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	PrimaryTopic    *Topic       `json:"primary_topic"`
	Topics          []Topic      `json:"topics"`
	Concepts        []Concept    `json:"concepts"`
	ReferencedWorks []string     `json:"referenced_works"`

	// FWCI is the field-weighted citation impact. A pointer because the API
	// reports null for works that have no score yet.
	FWCI *float64 `json:"fwci"`

	// CitationNormalizedPercentile carries the work's citation percentile
	// within its field, or null when not computed.
	CitationNormalizedPercentile *CitationPercentile `json:"citation_normalized_percentile"`

	// Abstract is stored as an inverted index - we will reconstruct it
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// CitationPercentile is the normalized citation percentile of a work.
type CitationPercentile struct {
	Value            float64 `json:"value"`
	IsInTop1Percent  bool    `json:"is_in_top_1_percent"`
	IsInTop10Percent bool    `json:"is_in_top_10_percent"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	AuthorPosition string        `json:"author_position"`
	Author         AuthorInfo    `json:"author"`
	Institutions   []Institution `json:"institutions"`
	Countries      []string      `json:"countries"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

// Institution represents an academic institution.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// Location represents where a work is available.
type Location struct {
	Source         *Source `json:"source"`
	LandingPageURL string  `json:"landing_page_url"`
	PDFURL         string  `json:"pdf_url"`
	Version        string  `json:"version"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"display_name"`
	ISSN                 []string `json:"issn"`
	HostOrganizationName string   `json:"host_organization_name"`
	Type                 string   `json:"type"`
}

// Topic represents a research topic assigned to a work.
type Topic struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Concept represents a concept tagged on a work.
type Concept struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}
