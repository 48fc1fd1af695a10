package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWork() *Work {
	return &Work{
		ID:          "https://openalex.org/W2741809807",
		ShortID:     "W2741809807",
		Title:       "Attention Is All You Need",
		Authors:     []Author{{ID: "A123", Name: "Ashish Vaswani"}},
		AuthorNames: "Ashish Vaswani",
		Year:        2017,
		Domain:      "artificial intelligence",
		IngestedAt:  time.Now().UTC(),
	}
}

func TestWork_Validate(t *testing.T) {
	t.Run("valid work", func(t *testing.T) {
		require.NoError(t, validWork().Validate())
	})

	t.Run("nil work", func(t *testing.T) {
		var w *Work
		err := w.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing id", func(t *testing.T) {
		w := validWork()
		w.ID = "  "
		err := w.Validate()
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})

	t.Run("missing short id", func(t *testing.T) {
		w := validWork()
		w.ShortID = ""
		err := w.Validate()
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "short_id", validationErr.Field)
	})

	t.Run("missing domain", func(t *testing.T) {
		w := validWork()
		w.Domain = ""
		err := w.Validate()
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "domain", validationErr.Field)
	})
}

func TestJoinAuthorNames(t *testing.T) {
	testCases := []struct {
		name     string
		authors  []Author
		expected string
	}{
		{
			name:     "empty list",
			authors:  nil,
			expected: "",
		},
		{
			name:     "single author",
			authors:  []Author{{Name: "Jane Doe"}},
			expected: "Jane Doe",
		},
		{
			name: "multiple authors",
			authors: []Author{
				{Name: "Jane Doe"},
				{Name: "John Smith"},
			},
			expected: "Jane Doe; John Smith",
		},
		{
			name: "skips empty names",
			authors: []Author{
				{Name: "Jane Doe"},
				{ID: "A42"},
				{Name: "John Smith"},
			},
			expected: "Jane Doe; John Smith",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, JoinAuthorNames(tc.authors))
		})
	}
}

func TestAuthor_String(t *testing.T) {
	t.Run("name only", func(t *testing.T) {
		a := Author{Name: "Jane Doe"}
		assert.Equal(t, "Jane Doe", a.String())
	})

	t.Run("full details", func(t *testing.T) {
		a := Author{
			Name:        "Jane Doe",
			Affiliation: "MIT",
			ORCID:       "0000-0001-2345-6789",
		}
		assert.Equal(t, "Jane Doe (MIT) [0000-0001-2345-6789]", a.String())
	})
}

func TestRelation_Validate(t *testing.T) {
	t.Run("valid relation", func(t *testing.T) {
		r := &Relation{FromID: "W1", ToID: "W2", Type: RelationTypeReferences}
		require.NoError(t, r.Validate())
	})

	t.Run("nil relation", func(t *testing.T) {
		var r *Relation
		assert.Error(t, r.Validate())
	})

	t.Run("missing endpoints", func(t *testing.T) {
		r := &Relation{ToID: "W2", Type: RelationTypeCitedBy}
		assert.Error(t, r.Validate())

		r = &Relation{FromID: "W1", Type: RelationTypeCitedBy}
		assert.Error(t, r.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		r := &Relation{FromID: "W1", ToID: "W2", Type: "funds"}
		err := r.Validate()
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "relation_type", validationErr.Field)
	})
}
