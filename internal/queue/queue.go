// Package queue is the durable offline write queue. Operations whose commit
// could not reach the remote store are appended here and replayed strictly in
// enqueue order once connectivity returns.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/operations"
)

// Entry is one queued operation.
type Entry struct {
	ID         uint64          `cbor:"id" json:"id"`
	Kind       operations.Kind `cbor:"kind" json:"kind"`
	Payload    []byte          `cbor:"payload" json:"-"`
	EnqueuedAt int64           `cbor:"enqueued_at" json:"enqueued_at"` // unix milliseconds
}

// Storage is the durable append-only backing store. List must return entries
// in ascending id order.
type Storage interface {
	Append(ctx context.Context, kind operations.Kind, payload []byte, enqueuedAt time.Time) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Remove(ctx context.Context, id uint64) error
	Close() error
}

// Replayer re-executes a decoded operation against the remote store.
type Replayer interface {
	Replay(ctx context.Context, op operations.Operation) error
}

// Listener observes drain outcomes. Calls are made synchronously from Drain.
type Listener interface {
	SyncCompleted(ctx context.Context, replayed int)
	SyncHalted(ctx context.Context, entry Entry, err error)
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Replayed  int
	Remaining int
	Halted    *Entry
}

// Status is the sync indicator exposed to clients.
type Status struct {
	Pending      int       `json:"pending"`
	Syncing      bool      `json:"syncing"`
	LastDrainAt  time.Time `json:"last_drain_at,omitempty"`
	LastReplayed int       `json:"last_replayed"`
	LastError    string    `json:"last_error,omitempty"`
}

// Queue owns the storage handle. It is safe for concurrent use; drains are
// serialized.
type Queue struct {
	storage  Storage
	replayer Replayer
	logger   *zap.Logger
	now      func() time.Time

	drainMu sync.Mutex

	mu        sync.RWMutex
	listeners []Listener
	status    Status
}

// New builds a queue over storage that replays through replayer.
func New(storage Storage, replayer Replayer, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		storage:  storage,
		replayer: replayer,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe registers a drain observer.
func (q *Queue) Subscribe(l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, l)
}

// Enqueue durably appends op.
func (q *Queue) Enqueue(ctx context.Context, op operations.Operation) error {
	payload, err := operations.Encode(op)
	if err != nil {
		return err
	}
	entry, err := q.storage.Append(ctx, op.Kind(), payload, q.now())
	if err != nil {
		return fmt.Errorf("append %s: %w", op.Kind(), err)
	}
	enqueuedTotal.WithLabelValues(string(op.Kind())).Inc()
	pendingGauge.Inc()
	q.logger.Info("operation queued for replay", zap.Uint64("entry_id", entry.ID), zap.String("kind", string(op.Kind())))
	return nil
}

// PeekAll returns every queued entry in replay order without removing them.
func (q *Queue) PeekAll(ctx context.Context) ([]Entry, error) {
	entries, err := q.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return entries, nil
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	entries, err := q.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Status reports the current sync indicator.
func (q *Queue) Status(ctx context.Context) (Status, error) {
	n, err := q.Len(ctx)
	if err != nil {
		return Status{}, err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	st := q.status
	st.Pending = n
	return st, nil
}

// Pending reports whether anything is queued or a drain is in progress.
// Callers use it to keep new operations behind older ones.
func (q *Queue) Pending(ctx context.Context) (bool, error) {
	q.mu.RLock()
	syncing := q.status.Syncing
	q.mu.RUnlock()
	if syncing {
		return true, nil
	}
	n, err := q.Len(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Drain replays queued entries in FIFO order. An entry is removed only after
// its replay succeeded; the first failure stops the pass and leaves that entry
// and every later one queued. Entries appended while the pass runs are
// replayed by the same pass. Draining an empty queue is a no-op.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	entries, err := q.storage.List(ctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("list queue: %w", err)
	}
	pendingGauge.Set(float64(len(entries)))
	if len(entries) == 0 {
		return DrainResult{}, nil
	}

	q.setSyncing(true)
	start := q.now()
	defer func() {
		drainDuration.Observe(time.Since(start).Seconds())
	}()

	var result DrainResult
	for len(entries) > 0 {
		for i, entry := range entries {
			if err := q.replay(ctx, entry); err != nil {
				return q.halt(ctx, result, entry, len(entries)-i, err)
			}
			result.Replayed++
			pendingGauge.Dec()
		}
		if entries, err = q.storage.List(ctx); err != nil {
			err = fmt.Errorf("list queue: %w", err)
			q.finish(result, err)
			return result, err
		}
		pendingGauge.Set(float64(len(entries)))
	}

	q.finish(result, nil)
	q.logger.Info("offline queue drained", zap.Int("replayed", result.Replayed))
	for _, l := range q.snapshotListeners() {
		l.SyncCompleted(ctx, result.Replayed)
	}
	return result, nil
}

func (q *Queue) halt(ctx context.Context, result DrainResult, entry Entry, remaining int, err error) (DrainResult, error) {
	result.Halted = &entry
	result.Remaining = remaining
	q.finish(result, err)
	q.logger.Warn("replay halted",
		zap.Uint64("entry_id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.Int("replayed", result.Replayed),
		zap.Int("remaining", result.Remaining),
		zap.Error(err))
	for _, l := range q.snapshotListeners() {
		l.SyncHalted(ctx, entry, err)
	}
	return result, fmt.Errorf("replay entry %d (%s): %w", entry.ID, entry.Kind, err)
}

func (q *Queue) replay(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	op, err := operations.Decode(entry.Kind, entry.Payload)
	if err != nil {
		replayedTotal.WithLabelValues(string(entry.Kind), outcomeFor(err)).Inc()
		return err
	}
	if err := q.replayer.Replay(ctx, op); err != nil {
		replayedTotal.WithLabelValues(string(entry.Kind), outcomeFor(err)).Inc()
		return err
	}
	replayedTotal.WithLabelValues(string(entry.Kind), "ok").Inc()
	if err := q.storage.Remove(ctx, entry.ID); err != nil {
		// the write landed; the entry will be replayed again next pass
		return fmt.Errorf("remove replayed entry: %w", err)
	}
	return nil
}

func (q *Queue) setSyncing(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status.Syncing = on
}

func (q *Queue) finish(result DrainResult, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status.Syncing = false
	q.status.LastDrainAt = q.now().UTC()
	q.status.LastReplayed = result.Replayed
	q.status.LastError = ""
	if err != nil {
		q.status.LastError = err.Error()
	}
}

func (q *Queue) snapshotListeners() []Listener {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Listener, len(q.listeners))
	copy(out, q.listeners)
	return out
}

func outcomeFor(err error) string {
	var dispatchErr *operations.ReplayDispatchError
	if errors.As(err, &dispatchErr) {
		return "dispatch_error"
	}
	return "failed"
}
