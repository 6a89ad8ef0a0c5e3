// Package live keeps an in-process mirror of the collections the write side
// reads snapshots from, fed by store subscriptions. Operations still waiting
// in the offline queue are layered over the mirror so callers read their own
// queued writes.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/store"
)

const defaultRetry = 5 * time.Second

// Cache holds the latest snapshot of every subscribed collection and falls
// back to direct reads for collections it has not received yet.
type Cache struct {
	subscriber store.Subscriber
	reader     store.Reader
	logger     *zap.Logger
	retry      time.Duration

	source PendingSource

	mu      sync.RWMutex
	docs    map[string]map[string]store.Document
	ready   map[string]bool
	pending []PendingOp
	wg      sync.WaitGroup
}

// PendingOp is the batch of an operation that has not reached the store.
type PendingOp struct {
	ID    string
	Batch *store.Batch
}

// PendingSource lists queued operations, oldest first.
type PendingSource func(ctx context.Context) ([]PendingOp, error)

// Option customizes a Cache.
type Option func(*Cache)

// WithPendingSource sets where Restore and drain notifications reload the
// queued operations from.
func WithPendingSource(source PendingSource) Option {
	return func(c *Cache) { c.source = source }
}

// NewCache builds a cache. Call Run to start the subscriptions.
func NewCache(subscriber store.Subscriber, reader store.Reader, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		subscriber: subscriber,
		reader:     reader,
		logger:     logger,
		retry:      defaultRetry,
		docs:       make(map[string]map[string]store.Document),
		ready:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage layers batch over the mirror until the next reload. Staging an id
// again replaces its batch.
func (c *Cache) Stage(opID string, batch *store.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, op := range c.pending {
		if op.ID == opID {
			c.pending[i].Batch = batch
			return
		}
	}
	c.pending = append(c.pending, PendingOp{ID: opID, Batch: batch})
}

// Restore replaces the staged operations with what the pending source
// reports. Without a source it does nothing.
func (c *Cache) Restore(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	ops, err := c.source(ctx)
	if err != nil {
		return fmt.Errorf("load queued operations: %w", err)
	}
	c.mu.Lock()
	c.pending = ops
	c.mu.Unlock()
	return nil
}

// SyncCompleted implements queue.Listener.
func (c *Cache) SyncCompleted(ctx context.Context, _ int) {
	c.restage(ctx)
}

// SyncHalted implements queue.Listener.
func (c *Cache) SyncHalted(ctx context.Context, _ queue.Entry, _ error) {
	c.restage(ctx)
}

func (c *Cache) restage(ctx context.Context) {
	if err := c.Restore(ctx); err != nil {
		c.logger.Warn("reload queued operations failed", zap.Error(err))
	}
}

// Run subscribes to each collection until ctx ends. Broken subscriptions are
// re-established after a pause.
func (c *Cache) Run(ctx context.Context, collections ...string) {
	for _, coll := range collections {
		c.wg.Add(1)
		go func(coll string) {
			defer c.wg.Done()
			c.follow(ctx, coll)
		}(coll)
	}
}

// Wait blocks until every subscription loop has exited.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) follow(ctx context.Context, collection string) {
	query := store.Query{Collection: collection}
	for {
		snapshots, err := c.subscriber.Subscribe(ctx, query)
		if err != nil {
			c.logger.Warn("subscribe failed", zap.String("collection", collection), zap.Error(err))
		} else {
			for snap := range snapshots {
				c.apply(collection, snap)
			}
		}
		c.markStale(collection)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retry):
		}
	}
}

func (c *Cache) apply(collection string, snap store.Snapshot) {
	docs := make(map[string]store.Document, len(snap.Documents))
	for _, doc := range snap.Documents {
		if id, ok := doc["_id"].(string); ok {
			docs[id] = doc
		}
	}
	c.mu.Lock()
	c.docs[collection] = docs
	c.ready[collection] = true
	c.mu.Unlock()
}

func (c *Cache) markStale(collection string) {
	c.mu.Lock()
	c.ready[collection] = false
	c.mu.Unlock()
}

// Get returns a document with every queued operation applied on top. A
// collection with a live snapshot answers from memory; otherwise, or when the
// snapshot lacks the id, the store is read directly.
func (c *Cache) Get(ctx context.Context, collection, id string) (store.Document, error) {
	c.mu.RLock()
	pending := c.pending
	c.mu.RUnlock()
	if len(pending) > 0 {
		if doc, touched := c.overlay(ctx, pending, collection, id); touched {
			if doc == nil {
				return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
			}
			return doc, nil
		}
	}
	return c.committed(ctx, collection, id)
}

// committed reads without the overlay. A miss in a live snapshot still asks
// the store, since the snapshot may lag a commit; when the store cannot
// answer the snapshot's verdict stands.
func (c *Cache) committed(ctx context.Context, collection, id string) (store.Document, error) {
	c.mu.RLock()
	ready := c.ready[collection]
	doc, ok := c.docs[collection][id]
	c.mu.RUnlock()
	if ok {
		return doc, nil
	}
	if c.reader == nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	doc, err := c.reader.Get(ctx, collection, id)
	if err != nil && ready && !IsNotFound(err) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return doc, err
}

// overlay replays pending batches over the committed state and reports
// whether any of them wrote collection/id. A batch that no longer applies,
// for instance because its target is gone or it was already committed, is
// left out as a whole.
func (c *Cache) overlay(ctx context.Context, pending []PendingOp, collection, id string) (store.Document, bool) {
	scratch := &layer{base: func(coll, docID string) (store.Document, bool) {
		doc, err := c.committed(ctx, coll, docID)
		return doc, err == nil
	}}
	now := time.Now().UTC()
	for _, op := range pending {
		tx := &layer{base: scratch.Lookup}
		if err := applyAll(tx, op.Batch, now); err != nil {
			c.logger.Debug("queued operation left out of read", zap.String("op_id", op.ID), zap.Error(err))
			continue
		}
		scratch.merge(tx)
	}
	doc, touched := scratch.docs[collection][id]
	return doc, touched
}

func applyAll(view store.View, batch *store.Batch, now time.Time) error {
	if batch == nil {
		return nil
	}
	for _, intent := range batch.Intents() {
		if err := store.Apply(view, intent, now); err != nil {
			return err
		}
	}
	return nil
}

// layer is a copy-on-write store.View over base. A nil document marks a
// delete.
type layer struct {
	base func(coll, id string) (store.Document, bool)
	docs map[string]map[string]store.Document
}

func (l *layer) Lookup(coll, id string) (store.Document, bool) {
	if doc, ok := l.docs[coll][id]; ok {
		return doc, doc != nil
	}
	doc, ok := l.base(coll, id)
	if !ok {
		return nil, false
	}
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}

func (l *layer) Put(coll, id string, doc store.Document) {
	if l.docs == nil {
		l.docs = make(map[string]map[string]store.Document)
	}
	if l.docs[coll] == nil {
		l.docs[coll] = make(map[string]store.Document)
	}
	l.docs[coll][id] = doc
}

func (l *layer) merge(tx *layer) {
	for coll, docs := range tx.docs {
		for id, doc := range docs {
			l.Put(coll, id, doc)
		}
	}
}

// Session returns the current snapshot of a harvest session.
func (c *Cache) Session(ctx context.Context, id string) (models.HarvestSession, error) {
	return get[models.HarvestSession](ctx, c, models.CollectionSessions, id)
}

// Register returns the current snapshot of a register.
func (c *Cache) Register(ctx context.Context, id string) (models.Register, error) {
	return get[models.Register](ctx, c, models.CollectionRegisters, id)
}

// Silobag returns the current snapshot of a silo bag.
func (c *Cache) Silobag(ctx context.Context, id string) (models.Silobag, error) {
	return get[models.Silobag](ctx, c, models.CollectionSilobags, id)
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func get[T any](ctx context.Context, c *Cache, collection, id string) (T, error) {
	var out T
	doc, err := c.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := store.Decode(doc, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}
