// Package schema implements the Schema Detector and Schema Registry
// (spec.md §4.2, §4.3): introspecting a live handle into a normalized
// SchemaSnapshot and persisting it keyed by dbKey with a TTL.
//
// Relational introspection is grounded on skeema-skeema/introspect.go's
// concurrent information_schema querying (golang.org/x/sync/errgroup,
// github.com/jmoiron/sqlx); document introspection is grounded on the
// teacher's sampling style generalized to Mongo collections.
package schema

import "time"

// FieldType is the inferred type of a document field. The constants
// are listed in precedence order (spec.md §4.2): Identifier > String >
// Number > Boolean > Object > Array<T> > Mixed. mergeType does not use
// that order: samples that disagree on a field's type yield Mixed.
type FieldType string

const (
	TypeIdentifier FieldType = "identifier"
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeBoolean    FieldType = "boolean"
	TypeObject     FieldType = "object"
	TypeArray      FieldType = "array"
	TypeMixed      FieldType = "mixed"
)

// typePrecedence orders FieldType values per spec.md §4.2. It is read
// only by rankIndex.
var typePrecedence = []FieldType{
	TypeIdentifier, TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeMixed,
}

// DocumentField describes one inferred field of a document collection.
type DocumentField struct {
	Name          string    `json:"name"`
	InferredType  FieldType `json:"inferredType"`
	Required      bool      `json:"required,omitempty"`
	Unique        bool      `json:"unique,omitempty"`
	Enum          []string  `json:"enum,omitempty"`
	Ref           string    `json:"ref,omitempty"`
}

// RelationshipKind distinguishes ORM-declared references from
// field-name-convention guesses (spec.md §4.2).
type RelationshipKind string

const (
	RelationshipReference          RelationshipKind = "reference"
	RelationshipPotentialReference RelationshipKind = "potentialReference"
)

// DocumentRelationship is an inferred or declared inter-collection link.
type DocumentRelationship struct {
	Field  string           `json:"field"`
	Kind   RelationshipKind `json:"kind"`
	Target string           `json:"target"`
}

// DocumentIndex describes an index on a collection.
type DocumentIndex struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique,omitempty"`
}

// DocumentCollection is one entry of a document-kind SchemaSnapshot.
type DocumentCollection struct {
	Collection    string                 `json:"collection"`
	Fields        []DocumentField        `json:"fields"`
	Indexes       []DocumentIndex        `json:"indexes,omitempty"`
	Relationships []DocumentRelationship `json:"relationships,omitempty"`
}

// Column describes one relational column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey describes one relational foreign-key constraint.
type ForeignKey struct {
	Column         string `json:"column"`
	RefTable       string `json:"refTable"`
	RefColumn      string `json:"refColumn"`
	ConstraintName string `json:"constraintName"`
}

// RelationalTable is one entry of a relational-kind SchemaSnapshot.
type RelationalTable struct {
	QualifiedTable string       `json:"qualifiedTable"`
	Columns        []Column     `json:"columns"`
	PrimaryKey     []string     `json:"primaryKey,omitempty"`
	ForeignKeys    []ForeignKey `json:"foreignKeys,omitempty"`
}

// Snapshot is the normalized schema payload for one database endpoint.
// Shape depends on Kind: Collections is populated for document kind,
// Tables for the two relational kinds. Never carries credentials.
type Snapshot struct {
	DBKey      string            `json:"dbKey"`
	Collections []DocumentCollection `json:"collections,omitempty"`
	Tables      []RelationalTable   `json:"tables,omitempty"`
	LastBuilt   time.Time           `json:"lastBuilt"`
}

// EntityCount returns the number of tables/collections described
// (spec.md §4.3 totals). The Registry does not call it.
func (s Snapshot) EntityCount() int {
	if len(s.Collections) > 0 {
		return len(s.Collections)
	}
	return len(s.Tables)
}

// Fresh reports whether the snapshot is still valid given ttl
// (spec.md §3 "freshness defined by now − lastBuilt < ttl").
func (s Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastBuilt) < ttl
}

// mergeType resolves the union of two observed field types: identical
// observations keep their type, any genuine disagreement collapses to
// Mixed (spec.md §4.2 "union-of-observed-types").
func mergeType(a, b FieldType) FieldType {
	if a == "" {
		return b
	}
	if b == "" || a == b {
		return a
	}
	return TypeMixed
}

// rankIndex returns the precedence position of t. mergeType does not
// call it, so it plays no part in type resolution.
func rankIndex(t FieldType) int {
	for i, candidate := range typePrecedence {
		if candidate == t {
			return i
		}
	}
	return len(typePrecedence)
}
