package openalex

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jiejieojoyuyu/article-recommendation-project/internal/domain"
)

// sampleWork returns a single fully-populated raw work for extraction tests.
func sampleWork() Work {
	return sampleListResponse().Results[0]
}

func TestExtractWork(t *testing.T) {
	t.Run("fully populated work", func(t *testing.T) {
		raw := sampleWork()

		work, err := ExtractWork(&raw, "artificial intelligence")
		require.NoError(t, err)
		require.NotNil(t, work)

		assert.Equal(t, "https://openalex.org/W2741809807", work.ID)
		assert.Equal(t, "W2741809807", work.ShortID)
		assert.Equal(t, "Deep learning", work.Title)
		assert.Equal(t, "artificial intelligence", work.Domain)

		require.Len(t, work.Authors, 2)
		assert.Equal(t, "A1234567890", work.Authors[0].ID)
		assert.Equal(t, "Yann LeCun", work.Authors[0].Name)
		assert.Equal(t, "0000-0001-2345-6789", work.Authors[0].ORCID)
		assert.Equal(t, "New York University", work.Authors[0].Affiliation)
		assert.Equal(t, "US", work.Authors[0].Country)
		assert.Equal(t, "A9876543210", work.Authors[1].ID)
		assert.Equal(t, "Geoffrey Hinton", work.Authors[1].Name)
		assert.Equal(t, "Yann LeCun; Geoffrey Hinton", work.AuthorNames)

		assert.Equal(t, 2015, work.Year)
		assert.Equal(t, "2015-05-27", work.PublicationDate)
		assert.Equal(t, "Nature", work.Venue)
		assert.Equal(t, []string{"0028-0836", "1476-4687"}, work.VenueISSNs)
		assert.Equal(t, "Nature Portfolio", work.VenueHost)
		assert.Equal(t, "Deep learning allows layered models.", work.Abstract)
		assert.Equal(t, []string{"Deep learning", "Artificial intelligence"}, work.Keywords)
		assert.Contains(t, work.ResearchField, `"display_name":"Deep learning"`)
		assert.Equal(t, "Neural Networks and Applications", work.PrimaryTopic)
		assert.Equal(t, []string{"Neural Networks and Applications", "Machine Learning Theory"}, work.Topics)
		assert.Equal(t, "https://doi.org/10.1038/nature14539", work.DOI)
		assert.Equal(t, 50000, work.CitationCount)
		require.NotNil(t, work.FWCI)
		assert.InDelta(t, 12.4, *work.FWCI, 0.001)
		require.NotNil(t, work.CitationPercentile)
		assert.InDelta(t, 0.999, *work.CitationPercentile, 0.0001)
		assert.Equal(t, []string{"W1234", "W5678"}, work.ReferencedWorks)
		assert.Equal(t, "https://www.nature.com/articles/nature14539", work.URL)
		assert.True(t, work.IngestedAt.IsZero(), "ingestion timestamp belongs to the store")

		require.NoError(t, work.Validate())
	})

	t.Run("identifier is the only mandatory field", func(t *testing.T) {
		raw := Work{ID: "https://openalex.org/W42"}

		work, err := ExtractWork(&raw, "physics")
		require.NoError(t, err)
		require.NotNil(t, work)

		assert.Equal(t, "W42", work.ShortID)
		assert.Empty(t, work.Title)
		assert.Empty(t, work.Authors)
		assert.Empty(t, work.AuthorNames)
		assert.Empty(t, work.Venue)
		assert.Empty(t, work.Abstract)
		assert.Empty(t, work.Keywords)
		assert.Empty(t, work.PrimaryTopic)
		assert.Nil(t, work.FWCI)
		assert.Nil(t, work.CitationPercentile)
		assert.Empty(t, work.ReferencedWorks)
		assert.Equal(t, "physics", work.Domain)

		require.NoError(t, work.Validate())
	})

	t.Run("missing identifier", func(t *testing.T) {
		tests := []struct {
			name string
			work *Work
		}{
			{"nil work", nil},
			{"empty id", &Work{Title: "Untitled"}},
			{"whitespace id", &Work{ID: "   "}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				work, err := ExtractWork(tt.work, "physics")
				require.Error(t, err)
				assert.Nil(t, work)
				assert.ErrorIs(t, err, domain.ErrNoIdentifier)
			})
		}
	})

	t.Run("falls back to title when display_name is absent", func(t *testing.T) {
		raw := Work{
			ID:    "https://openalex.org/W42",
			Title: "A Title Without Display Name",
		}

		work, err := ExtractWork(&raw, "physics")
		require.NoError(t, err)
		assert.Equal(t, "A Title Without Display Name", work.Title)
	})

	t.Run("falls back to the identifier when no landing page exists", func(t *testing.T) {
		tests := []struct {
			name string
			work Work
		}{
			{"no primary location", Work{ID: "https://openalex.org/W42"}},
			{"empty landing page", Work{
				ID:              "https://openalex.org/W42",
				PrimaryLocation: &Location{Source: &Source{DisplayName: "Nature"}},
			}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				work, err := ExtractWork(&tt.work, "physics")
				require.NoError(t, err)
				assert.Equal(t, "https://openalex.org/W42", work.URL)
			})
		}
	})

	t.Run("location without source keeps the landing page", func(t *testing.T) {
		raw := Work{
			ID: "https://openalex.org/W42",
			PrimaryLocation: &Location{
				LandingPageURL: "https://example.org/paper",
			},
		}

		work, err := ExtractWork(&raw, "physics")
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/paper", work.URL)
		assert.Empty(t, work.Venue)
		assert.Empty(t, work.VenueISSNs)
	})

	t.Run("skips concepts and topics without display names", func(t *testing.T) {
		raw := Work{
			ID:       "https://openalex.org/W42",
			Concepts: []Concept{{DisplayName: "Chemistry"}, {ID: "https://openalex.org/C1"}},
			Topics:   []Topic{{DisplayName: "Catalysis"}, {}},
		}

		work, err := ExtractWork(&raw, "chemistry")
		require.NoError(t, err)
		assert.Equal(t, []string{"Chemistry"}, work.Keywords)
		assert.Equal(t, []string{"Catalysis"}, work.Topics)
	})

	t.Run("drops referenced works that reduce to empty ids", func(t *testing.T) {
		raw := Work{
			ID:              "https://openalex.org/W42",
			ReferencedWorks: []string{"https://openalex.org/W1", "", "   "},
		}

		work, err := ExtractWork(&raw, "physics")
		require.NoError(t, err)
		assert.Equal(t, []string{"W1"}, work.ReferencedWorks)
	})
}

func TestExtractAuthors(t *testing.T) {
	t.Run("tolerates missing sub-fields", func(t *testing.T) {
		authorships := []Authorship{
			{Author: AuthorInfo{DisplayName: "Name Only"}},
			{Author: AuthorInfo{ID: "https://openalex.org/A1"}},
			{}, // neither id nor name, dropped
		}

		authors := extractAuthors(authorships)
		require.Len(t, authors, 2)
		assert.Equal(t, "Name Only", authors[0].Name)
		assert.Empty(t, authors[0].ID)
		assert.Equal(t, "A1", authors[1].ID)
		assert.Empty(t, authors[1].Name)
	})

	t.Run("country falls back to institution country code", func(t *testing.T) {
		authorships := []Authorship{
			{
				Author: AuthorInfo{DisplayName: "Somebody"},
				Institutions: []Institution{
					{DisplayName: "ETH Zurich", CountryCode: "CH"},
					{DisplayName: "Second Institution", CountryCode: "DE"},
				},
			},
		}

		authors := extractAuthors(authorships)
		require.Len(t, authors, 1)
		assert.Equal(t, "ETH Zurich", authors[0].Affiliation)
		assert.Equal(t, "CH", authors[0].Country)
	})

	t.Run("authorship country wins over institution country", func(t *testing.T) {
		authorships := []Authorship{
			{
				Author:       AuthorInfo{DisplayName: "Somebody"},
				Countries:    []string{"FR"},
				Institutions: []Institution{{DisplayName: "ETH Zurich", CountryCode: "CH"}},
			},
		}

		authors := extractAuthors(authorships)
		require.Len(t, authors, 1)
		assert.Equal(t, "FR", authors[0].Country)
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Nil(t, extractAuthors(nil))
		assert.Nil(t, extractAuthors([]Authorship{}))
	})
}

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"full work URL", "https://openalex.org/W2741809807", "W2741809807"},
		{"full author URL", "https://openalex.org/A1234567890", "A1234567890"},
		{"already short", "W2741809807", "W2741809807"},
		{"surrounding whitespace", "  https://openalex.org/W42  ", "W42"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"trailing slash", "https://openalex.org/W42/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortID(tt.id))
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name string
		doi  string
		want string
	}{
		{"https prefix", "https://doi.org/10.1038/nature14539", "10.1038/nature14539"},
		{"http prefix", "http://doi.org/10.1038/nature14539", "10.1038/nature14539"},
		{"doi scheme", "doi:10.1038/nature14539", "10.1038/nature14539"},
		{"bare doi", "10.1038/nature14539", "10.1038/nature14539"},
		{"uppercase is lowered", "https://doi.org/10.1038/NATURE14539", "10.1038/nature14539"},
		{"whitespace", "  10.1038/nature14539  ", "10.1038/nature14539"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDOI(tt.doi))
		})
	}
}

func TestReconstructAbstract(t *testing.T) {
	t.Run("empty index", func(t *testing.T) {
		assert.Empty(t, ReconstructAbstract(nil))
		assert.Empty(t, ReconstructAbstract(map[string][]int{}))
	})

	t.Run("single word", func(t *testing.T) {
		assert.Equal(t, "Hello", ReconstructAbstract(map[string][]int{"Hello": {0}}))
	})

	t.Run("words ordered by position", func(t *testing.T) {
		index := map[string][]int{
			"tool":     {4},
			"CRISPR":   {0},
			"powerful": {3},
			"is":       {1},
			"a":        {2},
		}
		assert.Equal(t, "CRISPR is a powerful tool", ReconstructAbstract(index))
	})

	t.Run("word appearing at multiple positions", func(t *testing.T) {
		index := map[string][]int{
			"the": {0, 3},
			"cat": {1},
			"and": {2},
			"dog": {4},
		}
		assert.Equal(t, "the cat and the dog", ReconstructAbstract(index))
	})

	t.Run("gaps in positions do not break reconstruction", func(t *testing.T) {
		index := map[string][]int{
			"first": {0},
			"last":  {99},
		}
		assert.Equal(t, "first last", ReconstructAbstract(index))
	})

	t.Run("negative positions do not panic", func(t *testing.T) {
		index := map[string][]int{
			"early": {-5},
			"late":  {1},
		}
		assert.Equal(t, "early late", ReconstructAbstract(index))
	})

	t.Run("oversized index is rejected", func(t *testing.T) {
		index := make(map[string][]int)
		for i := 0; i < 101; i++ {
			positions := make([]int, 1000)
			for j := range positions {
				positions[j] = i*1000 + j
			}
			index[fmt.Sprintf("word%d", i)] = positions
		}
		assert.Empty(t, ReconstructAbstract(index))
	})

	t.Run("realistic abstract", func(t *testing.T) {
		text := "Deep learning allows computational models that are composed of multiple processing layers"
		words := strings.Fields(text)
		index := make(map[string][]int)
		for i, word := range words {
			index[word] = append(index[word], i)
		}
		assert.Equal(t, text, ReconstructAbstract(index))
	})
}

func TestRelationsFromWork(t *testing.T) {
	t.Run("emits both edge directions per reference", func(t *testing.T) {
		work := &domain.Work{
			ShortID:         "W1",
			ReferencedWorks: []string{"W2", "W3"},
		}

		relations := RelationsFromWork(work)
		require.Len(t, relations, 4)

		assert.Equal(t, domain.Relation{FromID: "W1", ToID: "W2", Type: domain.RelationTypeReferences}, relations[0])
		assert.Equal(t, domain.Relation{FromID: "W2", ToID: "W1", Type: domain.RelationTypeCitedBy}, relations[1])
		assert.Equal(t, domain.Relation{FromID: "W1", ToID: "W3", Type: domain.RelationTypeReferences}, relations[2])
		assert.Equal(t, domain.Relation{FromID: "W3", ToID: "W1", Type: domain.RelationTypeCitedBy}, relations[3])

		for i := range relations {
			require.NoError(t, relations[i].Validate())
		}
	})

	t.Run("skips self references and empty ids", func(t *testing.T) {
		work := &domain.Work{
			ShortID:         "W1",
			ReferencedWorks: []string{"W1", "", "W2"},
		}

		relations := RelationsFromWork(work)
		require.Len(t, relations, 2)
		assert.Equal(t, "W2", relations[0].ToID)
	})

	t.Run("no references", func(t *testing.T) {
		assert.Nil(t, RelationsFromWork(nil))
		assert.Nil(t, RelationsFromWork(&domain.Work{ShortID: "W1"}))
		assert.Nil(t, RelationsFromWork(&domain.Work{ReferencedWorks: []string{"W2"}}))
	})
}
