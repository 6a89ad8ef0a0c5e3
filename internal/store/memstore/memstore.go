// Package memstore is an in-process implementation of store.Store. It honours
// the same atomicity, precondition and timestamp rules as the MongoDB driver
// and can simulate a lost link, which makes it the development and test
// backend of the write pipeline.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/store"
)

type subscription struct {
	query store.Query
	ch    chan store.Snapshot
}

// Store keeps every collection in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]store.Document
	subs        map[int]*subscription
	nextSub     int
	online      atomic.Bool
	commits     atomic.Int64
	now         func() time.Time
	logger      *zap.Logger
}

// New returns an empty, online store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		collections: make(map[string]map[string]store.Document),
		subs:        make(map[int]*subscription),
		now:         time.Now,
		logger:      logger,
	}
	s.online.Store(true)
	return s
}

// SetOnline toggles the simulated link.
func (s *Store) SetOnline(online bool) {
	s.online.Store(online)
}

// SetClock overrides the server clock used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Commits returns the number of successful commits.
func (s *Store) Commits() int64 {
	return s.commits.Load()
}

// Ping implements store.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.online.Load() {
		return store.ErrLinkDown
	}
	return nil
}

// Commit applies every intent of the batch or none of them.
func (s *Store) Commit(ctx context.Context, batch *store.Batch) error {
	if err := ctx.Err(); err != nil {
		return store.NewUnavailable(err)
	}
	if !s.online.Load() {
		return store.NewUnavailable(store.ErrLinkDown)
	}
	if batch == nil || batch.Len() == 0 {
		return store.NewRejected(store.ErrEmptyBatch)
	}

	s.mu.Lock()
	view := &staging{s: s, staged: make(map[string]map[string]store.Document)}
	now := s.now().UTC()
	for _, intent := range batch.Intents() {
		if err := store.Apply(view, intent, now); err != nil {
			s.mu.Unlock()
			return store.NewRejected(err)
		}
	}
	touched := make(map[string]bool, len(view.staged))
	for coll, docs := range view.staged {
		touched[coll] = true
		target := s.collection(coll)
		for id, doc := range docs {
			if doc == nil {
				delete(target, id)
				continue
			}
			target[id] = doc
		}
	}
	s.commits.Add(1)
	s.notifyLocked(touched)
	s.mu.Unlock()

	s.logger.Debug("batch committed", zap.Int("intents", batch.Len()))
	return nil
}

// staging is the store.View of one commit. Reads go through the staged
// writes first; a nil staged document marks a delete.
type staging struct {
	s      *Store
	staged map[string]map[string]store.Document
}

func (v *staging) Lookup(coll, id string) (store.Document, bool) {
	if docs, ok := v.staged[coll]; ok {
		if doc, ok := docs[id]; ok {
			return doc, doc != nil
		}
	}
	doc, ok := v.s.collections[coll][id]
	if !ok {
		return nil, false
	}
	return clone(doc), true
}

func (v *staging) Put(coll, id string, doc store.Document) {
	if v.staged[coll] == nil {
		v.staged[coll] = make(map[string]store.Document)
	}
	v.staged[coll][id] = doc
}

// Get implements store.Reader.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if !s.online.Load() {
		return nil, store.ErrLinkDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return clone(doc), nil
}

// Find implements store.Reader. Results are ordered by id.
func (s *Store) Find(ctx context.Context, query store.Query) ([]store.Document, error) {
	if !s.online.Load() {
		return nil, store.ErrLinkDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(query), nil
}

func (s *Store) findLocked(query store.Query) []store.Document {
	docs := s.collections[query.Collection]
	ids := make([]string, 0, len(docs))
	for id, doc := range docs {
		if query.Matches(doc) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(docs[id]))
	}
	return out
}

// Subscribe implements store.Subscriber. The current result set is delivered
// immediately; later snapshots follow every commit touching the collection.
// Slow consumers only ever see the latest snapshot.
func (s *Store) Subscribe(ctx context.Context, query store.Query) (<-chan store.Snapshot, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &subscription{query: query, ch: make(chan store.Snapshot, 1)}
	s.subs[id] = sub
	sub.ch <- store.Snapshot{Query: query, Documents: s.findLocked(query), At: s.now().UTC()}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}

// Close implements store.Store.
func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) notifyLocked(touched map[string]bool) {
	for _, sub := range s.subs {
		if !touched[sub.query.Collection] {
			continue
		}
		snap := store.Snapshot{Query: sub.query, Documents: s.findLocked(sub.query), At: s.now().UTC()}
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

func (s *Store) collection(name string) map[string]store.Document {
	coll, ok := s.collections[name]
	if !ok {
		coll = make(map[string]store.Document)
		s.collections[name] = coll
	}
	return coll
}

func clone(doc store.Document) store.Document {
	raw, err := bson.Marshal(doc)
	if err != nil {
		out := make(store.Document, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		return out
	}
	var out store.Document
	if err := bson.Unmarshal(raw, &out); err != nil {
		return doc
	}
	return out
}
