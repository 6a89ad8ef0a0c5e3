package mongodb

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/harvest/internal/store"
)

// write is one intent translated into driver arguments.
type write struct {
	kind       store.IntentKind
	collection string
	id         string
	filter     bson.D
	update     interface{}
	derive     store.DeriveFunc
	guarded    bool
	missErr    error
}

func translateBatch(batch *store.Batch) ([]write, error) {
	intents := batch.Intents()
	writes := make([]write, 0, len(intents))
	for _, intent := range intents {
		w, err := translate(intent)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	return writes, nil
}

// translate builds the filter and update for one intent.
//
// Creates are pipeline upserts that only materialize the document when it
// does not exist yet, so replaying a create leaves the stored fields and
// timestamps untouched. Timestamps come from the server via $$NOW and
// $currentDate.
func translate(intent store.Intent) (write, error) {
	w := write{
		kind:       intent.Kind,
		collection: intent.Collection,
		id:         intent.ID,
		filter:     idFilter(intent.ID, intent.Where),
		missErr:    store.ErrNotFound,
	}
	if len(intent.Where) > 0 {
		w.guarded = true
		w.missErr = store.ErrPreconditionFailed
	}

	switch intent.Kind {
	case store.IntentCreate:
		doc, err := store.ToDocument(intent.Doc)
		if err != nil {
			return write{}, fmt.Errorf("create %s/%s: %w", intent.Collection, intent.ID, err)
		}
		fields := bson.M{}
		for k, v := range doc {
			switch k {
			case "_id", store.FieldCreatedAt, store.FieldUpdatedAt:
				continue
			}
			fields[k] = v
		}
		w.filter = idFilter(intent.ID, nil)
		w.update = bson.A{
			bson.D{{Key: "$replaceWith", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$" + store.FieldCreatedAt}}, "missing"}}},
				bson.D{{Key: "$mergeObjects", Value: bson.A{
					bson.D{{Key: "$literal", Value: fields}},
					bson.D{
						{Key: "_id", Value: intent.ID},
						{Key: store.FieldCreatedAt, Value: "$$NOW"},
						{Key: store.FieldUpdatedAt, Value: "$$NOW"},
					},
				}}},
				"$$ROOT",
			}}}}},
		}
	case store.IntentUpdate:
		if len(intent.Patch) == 0 {
			return write{}, fmt.Errorf("update %s/%s: empty patch", intent.Collection, intent.ID)
		}
		w.update = bson.D{
			{Key: "$set", Value: bson.M(intent.Patch)},
			{Key: "$currentDate", Value: bson.D{{Key: store.FieldUpdatedAt, Value: true}}},
		}
	case store.IntentIncrement:
		if intent.Field == "" {
			return write{}, fmt.Errorf("increment %s/%s: missing field", intent.Collection, intent.ID)
		}
		w.update = bson.D{
			{Key: "$inc", Value: bson.D{{Key: intent.Field, Value: intent.Delta}}},
			{Key: "$currentDate", Value: bson.D{{Key: store.FieldUpdatedAt, Value: true}}},
		}
	case store.IntentDerive:
		if intent.Derive == nil {
			return write{}, fmt.Errorf("derive %s/%s: missing func", intent.Collection, intent.ID)
		}
		w.derive = intent.Derive
	case store.IntentClaim:
		doc, err := store.ToDocument(intent.Doc)
		if err != nil {
			return write{}, fmt.Errorf("claim %s: %w", intent.ID, err)
		}
		marker := bson.D{{Key: "_id", Value: intent.ID}}
		for k, v := range doc {
			if k == "_id" {
				continue
			}
			marker = append(marker, bson.E{Key: k, Value: v})
		}
		w.update = marker
	case store.IntentDelete:
	default:
		return write{}, fmt.Errorf("unsupported intent %q", intent.Kind)
	}
	return w, nil
}

// derivedUpdate wraps a derived patch like a plain update.
func derivedUpdate(fields store.Patch) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M(fields)},
		{Key: "$currentDate", Value: bson.D{{Key: store.FieldUpdatedAt, Value: true}}},
	}
}

// deleteOutcome reports a guarded delete that matched nothing while the
// document still exists: its preconditions did not hold.
func deleteOutcome(w write, deleted int64, exists func() (bool, error)) error {
	if deleted > 0 || !w.guarded {
		return nil
	}
	found, err := exists()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", w.collection, w.id, err)
	}
	if found {
		return fmt.Errorf("delete %s/%s: %w", w.collection, w.id, w.missErr)
	}
	return nil
}

func idFilter(id string, where []store.Filter) bson.D {
	filter := bson.D{{Key: "_id", Value: id}}
	for _, f := range where {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	return filter
}

func queryFilter(q store.Query) bson.D {
	filter := bson.D{}
	for _, f := range q.Filters {
		filter = append(filter, bson.E{Key: f.Field, Value: f.Value})
	}
	return filter
}
