package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is a schema-less stored document.
type Document = bson.M

// Query selects documents of one collection by equality filters.
type Query struct {
	Collection string
	Filters    []Filter
}

// Matches reports whether doc satisfies every filter.
func (q Query) Matches(doc Document) bool {
	return matchAll(doc, q.Filters)
}

// Snapshot is the full result set of a query at one point in time.
type Snapshot struct {
	Query     Query
	Documents []Document
	At        time.Time
}

// Committer applies batches atomically.
type Committer interface {
	Commit(ctx context.Context, batch *Batch) error
}

// Reader performs point reads and queries.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, query Query) ([]Document, error)
}

// Subscriber streams query snapshots. The channel is closed when ctx ends or
// the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context, query Query) (<-chan Snapshot, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the full remote document store capability.
type Store interface {
	Committer
	Reader
	Subscriber
	Pinger
	Close(ctx context.Context) error
}

// Decode converts a stored document into a typed model using its bson tags.
func Decode(doc Document, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}

// ToDocument converts a typed model into a Document using its bson tags.
func ToDocument(v any) (Document, error) {
	if doc, ok := v.(Document); ok {
		return doc, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc Document
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// Satisfies reports whether doc satisfies every filter.
func Satisfies(doc Document, filters []Filter) bool {
	return matchAll(doc, filters)
}

func matchAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !equalValues(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// equalValues compares a stored value against a filter value. Stored values
// went through bson so named string types and numeric widths are normalized.
func equalValues(stored, want any) bool {
	if a, ok := toFloat(stored); ok {
		if b, ok := toFloat(want); ok {
			return a == b
		}
	}
	return fmt.Sprint(stored) == fmt.Sprint(want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
