// Package store defines the contract between the write pipeline and the
// remote document store: batches of mutation intents committed atomically,
// point reads and live query subscriptions.
package store

import "github.com/google/uuid"

// IntentKind enumerates the mutations a batch can carry.
type IntentKind string

const (
	IntentCreate    IntentKind = "create"
	IntentUpdate    IntentKind = "update"
	IntentIncrement IntentKind = "increment"
	IntentDelete    IntentKind = "delete"
	IntentDerive    IntentKind = "derive"
	IntentClaim     IntentKind = "claim"
)

// CollectionApplied holds one marker per operation a commit has applied.
const CollectionApplied = "applied_operations"

// Reserved metadata fields stamped by the store at commit time.
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Patch is a set of top-level field assignments.
type Patch map[string]any

// Filter is an equality condition on a top-level field. On intents it acts
// as a precondition; in queries it selects documents.
type Filter struct {
	Field string
	Value any
}

// Where builds a Filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Lookup reads a document as the running commit sees it, including the
// effect of earlier intents of the same batch.
type Lookup func(collection, id string) (Document, error)

// DeriveFunc computes fields from stored state at commit time.
type DeriveFunc func(lookup Lookup) (Patch, error)

// Intent is one mutation inside a batch.
type Intent struct {
	Kind       IntentKind
	Collection string
	ID         string
	Doc        any
	Patch      Patch
	Field      string
	Delta      float64
	Derive     DeriveFunc
	Where      []Filter
}

// Batch accumulates intents that must be committed as a single atomic unit.
// A Batch is not safe for concurrent use.
type Batch struct {
	intents []Intent
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Create adds a document creation. An empty id is replaced by a fresh UUID,
// which is returned. Creating an existing id leaves the stored fields untouched
// so replayed creates are harmless.
func (b *Batch) Create(collection, id string, doc any) string {
	if id == "" {
		id = uuid.NewString()
	}
	b.intents = append(b.intents, Intent{Kind: IntentCreate, Collection: collection, ID: id, Doc: doc})
	return id
}

// Update adds a partial update. All where filters must hold on the stored
// document or the whole batch is rejected.
func (b *Batch) Update(collection, id string, patch Patch, where ...Filter) {
	b.intents = append(b.intents, Intent{Kind: IntentUpdate, Collection: collection, ID: id, Patch: patch, Where: where})
}

// Increment adds an atomic numeric increment of one field.
func (b *Batch) Increment(collection, id, field string, delta float64, where ...Filter) {
	b.intents = append(b.intents, Intent{Kind: IntentIncrement, Collection: collection, ID: id, Field: field, Delta: delta, Where: where})
}

// Delete adds a document deletion. Deleting a missing document is not an error.
func (b *Batch) Delete(collection, id string, where ...Filter) {
	b.intents = append(b.intents, Intent{Kind: IntentDelete, Collection: collection, ID: id, Where: where})
}

// Derive adds a patch computed by fn when the batch commits, after every
// intent added before it. Values a caller read earlier may be stale by then;
// fn sees what the store holds.
func (b *Batch) Derive(collection, id string, fn DeriveFunc, where ...Filter) {
	b.intents = append(b.intents, Intent{Kind: IntentDerive, Collection: collection, ID: id, Derive: fn, Where: where})
}

// Claim marks operation id as applied. The marker is checked before every
// other intent: when it already exists the batch fails with ErrAlreadyApplied
// and nothing else is written.
func (b *Batch) Claim(id, kind string) {
	claim := Intent{Kind: IntentClaim, Collection: CollectionApplied, ID: id, Doc: Document{"kind": kind}}
	b.intents = append([]Intent{claim}, b.intents...)
}

// Intents returns a copy of the accumulated intents in insertion order.
func (b *Batch) Intents() []Intent {
	out := make([]Intent, len(b.intents))
	copy(out, b.intents)
	return out
}

// Len returns the number of intents.
func (b *Batch) Len() int {
	return len(b.intents)
}
