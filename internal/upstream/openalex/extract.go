package openalex

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

const (
	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// orcidPrefix is the URL prefix for ORCID identifiers.
	orcidPrefix = "https://orcid.org/"
)

// ExtractWork normalizes one raw OpenAlex work into its persisted form,
// tagged with the crawl domain it was fetched for. Only the fully-qualified
// identifier is mandatory; every other field degrades to its zero value when
// absent. A work without an identifier yields domain.ErrNoIdentifier.
//
// The ingestion timestamp is deliberately left unset here; the store stamps
// rows at commit time.
func ExtractWork(work *Work, crawlDomain string) (*domain.Work, error) {
	if work == nil || strings.TrimSpace(work.ID) == "" {
		return nil, domain.ErrNoIdentifier
	}

	// Prefer display_name, which is usually cleaner than title
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	authors := extractAuthors(work.Authorships)

	// Venue and landing page from the primary location
	var venue, venueHost, landingPage string
	var issns []string
	if work.PrimaryLocation != nil {
		landingPage = work.PrimaryLocation.LandingPageURL
		if work.PrimaryLocation.Source != nil {
			venue = work.PrimaryLocation.Source.DisplayName
			issns = work.PrimaryLocation.Source.ISSN
			venueHost = work.PrimaryLocation.Source.HostOrganizationName
		}
	}

	pageURL := landingPage
	if pageURL == "" {
		pageURL = work.ID
	}

	keywords := make([]string, 0, len(work.Concepts))
	for _, concept := range work.Concepts {
		if concept.DisplayName != "" {
			keywords = append(keywords, concept.DisplayName)
		}
	}

	// The research_field column keeps the full tagged concept list, scores
	// included, for downstream ranking.
	var researchField string
	if len(work.Concepts) > 0 {
		if encoded, err := json.Marshal(work.Concepts); err == nil {
			researchField = string(encoded)
		}
	}

	var primaryTopic string
	if work.PrimaryTopic != nil {
		primaryTopic = work.PrimaryTopic.DisplayName
	}

	topics := make([]string, 0, len(work.Topics))
	for _, topic := range work.Topics {
		if topic.DisplayName != "" {
			topics = append(topics, topic.DisplayName)
		}
	}

	referenced := make([]string, 0, len(work.ReferencedWorks))
	for _, ref := range work.ReferencedWorks {
		if shortID := ShortID(ref); shortID != "" {
			referenced = append(referenced, shortID)
		}
	}

	var percentile *float64
	if work.CitationNormalizedPercentile != nil {
		value := work.CitationNormalizedPercentile.Value
		percentile = &value
	}

	return &domain.Work{
		ID:                 work.ID,
		ShortID:            ShortID(work.ID),
		Title:              title,
		Authors:            authors,
		AuthorNames:        domain.JoinAuthorNames(authors),
		Year:               work.PublicationYear,
		PublicationDate:    work.PublicationDate,
		Venue:              venue,
		VenueISSNs:         issns,
		VenueHost:          venueHost,
		Abstract:           ReconstructAbstract(work.AbstractInvertedIndex),
		Keywords:           keywords,
		ResearchField:      researchField,
		PrimaryTopic:       primaryTopic,
		Topics:             topics,
		DOI:                work.DOI,
		CitationCount:      work.CitedByCount,
		FWCI:               work.FWCI,
		CitationPercentile: percentile,
		ReferencedWorks:    referenced,
		URL:                pageURL,
		Domain:             crawlDomain,
	}, nil
}

// RelationsFromWork derives the citation edges of a normalized work: one
// "references" edge per referenced work plus the inverse "cited_by" edge.
// Edges may point at works that have not been crawled yet.
func RelationsFromWork(w *domain.Work) []domain.Relation {
	if w == nil || w.ShortID == "" || len(w.ReferencedWorks) == 0 {
		return nil
	}

	relations := make([]domain.Relation, 0, 2*len(w.ReferencedWorks))
	for _, ref := range w.ReferencedWorks {
		if ref == "" || ref == w.ShortID {
			continue
		}
		relations = append(relations,
			domain.Relation{FromID: w.ShortID, ToID: ref, Type: domain.RelationTypeReferences},
			domain.Relation{FromID: ref, ToID: w.ShortID, Type: domain.RelationTypeCitedBy},
		)
	}
	return relations
}

// extractAuthors flattens the authorship list, tolerating missing sub-fields.
// Entries with neither an identifier nor a name are dropped.
func extractAuthors(authorships []Authorship) []domain.Author {
	if len(authorships) == 0 {
		return nil
	}

	authors := make([]domain.Author, 0, len(authorships))
	for _, authorship := range authorships {
		author := domain.Author{
			ID:    ShortID(authorship.Author.ID),
			Name:  authorship.Author.DisplayName,
			ORCID: normalizeORCID(authorship.Author.Orcid),
		}

		if len(authorship.Countries) > 0 {
			author.Country = authorship.Countries[0]
		}
		if len(authorship.Institutions) > 0 {
			author.Affiliation = authorship.Institutions[0].DisplayName
			if author.Country == "" {
				author.Country = authorship.Institutions[0].CountryCode
			}
		}

		if author.ID == "" && author.Name == "" {
			continue
		}
		authors = append(authors, author)
	}
	return authors
}

// ShortID converts a fully-qualified OpenAlex identifier into its short
// local form, the last path segment. Identifiers that are already short
// pass through unchanged.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if idx := strings.LastIndexByte(id, '/'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

// NormalizeDOI strips the https://doi.org/ prefix from DOIs and returns lowercase.
func NormalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// normalizeORCID strips any URL prefixes from ORCID identifiers.
func normalizeORCID(orcid string) string {
	if orcid == "" {
		return ""
	}
	orcid = strings.TrimPrefix(orcid, orcidPrefix)
	return strings.TrimSpace(orcid)
}

// ReconstructAbstract reconstructs the abstract text from OpenAlex's
// inverted index format, which maps words to their positions. Malformed or
// absent indexes yield an empty abstract, never an error.
func ReconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	// Build a slice of (position, word) pairs.
	// Pre-calculate total capacity by summing all position slice lengths.
	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	// Sort by position
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	// Reconstruct the text with pre-sized builder to reduce allocations.
	// Estimate average word length of 6 characters plus a space separator.
	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}
