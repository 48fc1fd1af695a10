package domain

import "strings"

// RelationType classifies a directed edge between two works.
type RelationType string

// Relation type constants.
const (
	RelationTypeReferences RelationType = "references"
	RelationTypeCitedBy    RelationType = "cited_by"
)

// IsValid returns true for a known relation type.
func (t RelationType) IsValid() bool {
	return t == RelationTypeReferences || t == RelationTypeCitedBy
}

// Relation is a directed edge between two works, identified by short ID.
// A relation is unique per (from, to, type) triple and is only ever
// inserted-if-absent, never updated.
type Relation struct {
	FromID string
	ToID   string
	Type   RelationType
}

// Validate checks the invariants required before a relation may be persisted.
func (r *Relation) Validate() error {
	if r == nil {
		return NewValidationError("relation", "must not be nil")
	}
	if strings.TrimSpace(r.FromID) == "" {
		return NewValidationError("from_id", "must not be empty")
	}
	if strings.TrimSpace(r.ToID) == "" {
		return NewValidationError("to_id", "must not be empty")
	}
	if !r.Type.IsValid() {
		return NewValidationError("relation_type", "must be references or cited_by")
	}
	return nil
}
