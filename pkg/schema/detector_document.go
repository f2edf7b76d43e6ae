package schema

import (
	"context"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sampleSize = 10

var idFieldPattern = regexp.MustCompile(`Id$`)

// DetectDocument introspects a mongo-driver database: enumerates
// collections, samples up to sampleSize documents per collection, and
// infers field shape (spec.md §4.2).
func DetectDocument(ctx context.Context, db *mongo.Database) (Snapshot, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return Snapshot{}, err
	}

	collections := make([]DocumentCollection, 0, len(names))
	for _, name := range names {
		coll, err := detectCollection(ctx, db, name)
		if err != nil {
			return Snapshot{}, err
		}
		collections = append(collections, coll)
	}
	return Snapshot{Collections: collections}, nil
}

func detectCollection(ctx context.Context, db *mongo.Database, name string) (DocumentCollection, error) {
	coll := db.Collection(name)

	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetLimit(sampleSize))
	if err != nil {
		return DocumentCollection{}, err
	}
	defer cursor.Close(ctx)

	var samples []bson.M
	if err := cursor.All(ctx, &samples); err != nil {
		return DocumentCollection{}, err
	}

	fields := inferFields(samples)
	relationships := inferRelationships(fields)
	indexes, err := detectIndexes(ctx, coll)
	if err != nil {
		// Index introspection is best-effort; a schema with fields but
		// no index list is still useful to the rest of the pipeline.
		indexes = nil
	}

	return DocumentCollection{
		Collection:    name,
		Fields:        fields,
		Indexes:       indexes,
		Relationships: relationships,
	}, nil
}

// inferFields unions observed types across all samples and marks a
// field required only when it appears in every sample.
func inferFields(samples []bson.M) []DocumentField {
	types := map[string]FieldType{}
	counts := map[string]int{}
	order := []string{}

	for _, doc := range samples {
		for key, val := range doc {
			if _, seen := types[key]; !seen {
				order = append(order, key)
			}
			t := inferValueType(key, val)
			types[key] = mergeType(types[key], t)
			counts[key]++
		}
	}

	fields := make([]DocumentField, 0, len(order))
	for _, key := range order {
		fields = append(fields, DocumentField{
			Name:         key,
			InferredType: types[key],
			Required:     counts[key] == len(samples) && len(samples) > 0,
		})
	}
	return fields
}

// inferValueType classifies a single observed value, applying the
// Identifier precedence before falling through to Go's dynamic type.
func inferValueType(key string, val interface{}) FieldType {
	switch v := val.(type) {
	case primitive.ObjectID:
		return TypeIdentifier
	case string:
		if looksLikeIdentifier(v) {
			return TypeIdentifier
		}
		return TypeString
	case int32, int64, float64, int:
		return TypeNumber
	case bool:
		return TypeBoolean
	case bson.A:
		return TypeArray
	case bson.M, bson.D:
		return TypeObject
	default:
		_ = v
		return TypeMixed
	}
}

var hexIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func looksLikeIdentifier(s string) bool {
	return hexIDPattern.MatchString(s)
}

// inferRelationships applies the "*Id"-suffix + identifier-type
// convention to flag potential references (spec.md §4.2). ORM-declared
// explicit references are not auto-detectable from raw documents and
// are left for callers that have ORM metadata; none is assumed here.
func inferRelationships(fields []DocumentField) []DocumentRelationship {
	var rels []DocumentRelationship
	for _, f := range fields {
		if f.Name == "_id" {
			continue
		}
		if idFieldPattern.MatchString(f.Name) && f.InferredType == TypeIdentifier {
			target := strings.TrimSuffix(f.Name, "Id")
			rels = append(rels, DocumentRelationship{
				Field:  f.Name,
				Kind:   RelationshipPotentialReference,
				Target: pluralize(target),
			})
		}
	}
	return rels
}

func pluralize(noun string) string {
	if noun == "" {
		return noun
	}
	if strings.HasSuffix(noun, "s") {
		return noun
	}
	return noun + "s"
}

func detectIndexes(ctx context.Context, coll *mongo.Collection) ([]DocumentIndex, error) {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	indexes := make([]DocumentIndex, 0, len(raw))
	for _, idx := range raw {
		name, _ := idx["name"].(string)
		unique, _ := idx["unique"].(bool)
		var fields []string
		if key, ok := idx["key"].(bson.M); ok {
			for field := range key {
				fields = append(fields, field)
			}
		}
		indexes = append(indexes, DocumentIndex{Name: name, Fields: fields, Unique: unique})
	}
	return indexes, nil
}
