package store

import (
	"fmt"
	"time"
)

// View is a mutable document set intents are applied to. In-process
// implementations of Committer and optimistic local views share Apply so
// both follow the same rules.
type View interface {
	// Lookup returns a document the caller may modify.
	Lookup(collection, id string) (Document, bool)
	// Put replaces collection/id with doc; a nil doc deletes it.
	Put(collection, id string, doc Document)
}

// Apply applies one intent to view using now as the commit time.
func Apply(view View, intent Intent, now time.Time) error {
	current, exists := view.Lookup(intent.Collection, intent.ID)

	if exists && !Satisfies(current, intent.Where) {
		return fmt.Errorf("%s/%s: %w", intent.Collection, intent.ID, ErrPreconditionFailed)
	}

	switch intent.Kind {
	case IntentClaim:
		if exists {
			return fmt.Errorf("operation %s: %w", intent.ID, ErrAlreadyApplied)
		}
		return create(view, intent, now)
	case IntentCreate:
		if exists {
			return nil
		}
		return create(view, intent, now)
	case IntentUpdate:
		if !exists {
			return fmt.Errorf("update %s/%s: %w", intent.Collection, intent.ID, ErrNotFound)
		}
		return patch(view, intent, current, intent.Patch, now)
	case IntentIncrement:
		if !exists {
			return fmt.Errorf("increment %s/%s: %w", intent.Collection, intent.ID, ErrNotFound)
		}
		base, _ := toFloat(current[intent.Field])
		current[intent.Field] = base + intent.Delta
		current[FieldUpdatedAt] = now
		view.Put(intent.Collection, intent.ID, current)
	case IntentDerive:
		if !exists {
			return fmt.Errorf("derive %s/%s: %w", intent.Collection, intent.ID, ErrNotFound)
		}
		if intent.Derive == nil {
			return fmt.Errorf("derive %s/%s: missing func", intent.Collection, intent.ID)
		}
		fields, err := intent.Derive(viewLookup(view))
		if err != nil {
			return fmt.Errorf("derive %s/%s: %w", intent.Collection, intent.ID, err)
		}
		return patch(view, intent, current, fields, now)
	case IntentDelete:
		if exists {
			view.Put(intent.Collection, intent.ID, nil)
		}
	default:
		return fmt.Errorf("unsupported intent %q", intent.Kind)
	}
	return nil
}

func create(view View, intent Intent, now time.Time) error {
	doc, err := ToDocument(intent.Doc)
	if err != nil {
		return err
	}
	out := make(Document, len(doc)+3)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = intent.ID
	out[FieldCreatedAt] = now
	out[FieldUpdatedAt] = now
	view.Put(intent.Collection, intent.ID, out)
	return nil
}

func patch(view View, intent Intent, current Document, fields Patch, now time.Time) error {
	doc, err := ToDocument(fields)
	if err != nil {
		return err
	}
	for k, v := range doc {
		current[k] = v
	}
	current[FieldUpdatedAt] = now
	view.Put(intent.Collection, intent.ID, current)
	return nil
}

func viewLookup(view View) Lookup {
	return func(collection, id string) (Document, error) {
		doc, ok := view.Lookup(collection, id)
		if !ok {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return doc, nil
	}
}
