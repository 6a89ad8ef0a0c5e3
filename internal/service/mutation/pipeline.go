// Package mutation holds the commit path shared by every domain service:
// commit the batch, and when the remote store is unreachable hand the typed
// operation to the offline queue instead of failing the caller. While the
// queue holds anything, new operations join it so they never overtake
// older ones.
package mutation

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/store"
)

const defaultCommitTimeout = 10 * time.Second

// ErrBehindQueue is the queueing cause for operations submitted while older
// ones are still waiting for replay.
var ErrBehindQueue = errors.New("older operations pending")

var commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "harvest",
	Subsystem: "mutations",
	Name:      "submitted_total",
	Help:      "Mutation submissions by kind and outcome.",
}, []string{"kind", "outcome"})

// Enqueuer durably stores an operation for later replay.
type Enqueuer interface {
	Enqueue(ctx context.Context, op operations.Operation) error
	// Pending reports whether queued work is waiting or being replayed.
	Pending(ctx context.Context) (bool, error)
}

// LocalView receives the batches of queued operations so reads can reflect
// them before they reach the store.
type LocalView interface {
	Stage(opID string, batch *store.Batch)
}

// Link reports the local view of connectivity.
type Link interface {
	Online() bool
}

// Result is what a mutation service returns to its caller.
type Result struct {
	ID     string `json:"id,omitempty"`
	Queued bool   `json:"queued"`
}

// Pipeline commits batches and falls back to the offline queue.
type Pipeline struct {
	committer store.Committer
	queue     Enqueuer
	link      Link
	view      LocalView
	nudge     func()
	timeout   time.Duration
	logger    *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLink short-circuits commits while link reports offline.
func WithLink(link Link) Option {
	return func(p *Pipeline) { p.link = link }
}

// WithLocalView stages every queued batch into v.
func WithLocalView(v LocalView) Option {
	return func(p *Pipeline) { p.view = v }
}

// WithNudge sets a hook called when an operation is queued behind older
// work while the link is up, so a drain can be started without waiting for
// the next connectivity check.
func WithNudge(fn func()) Option {
	return func(p *Pipeline) { p.nudge = fn }
}

// WithCommitTimeout bounds a single commit round-trip.
func WithCommitTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPipeline wires a pipeline.
func NewPipeline(committer store.Committer, queue Enqueuer, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		committer: committer,
		queue:     queue,
		timeout:   defaultCommitTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit commits batch. If the store is unavailable, or older operations
// are still queued, op is queued and Submit reports queued=true with a nil
// error. Every other failure is returned unchanged and nothing is queued.
func (p *Pipeline) Submit(ctx context.Context, op operations.Operation, batch *store.Batch) (bool, error) {
	kind := string(op.Kind())
	Claim(batch, op)

	if p.link != nil && !p.link.Online() {
		return p.enqueue(ctx, op, batch, store.NewUnavailable(store.ErrLinkDown)), nil
	}

	pending, err := p.queue.Pending(ctx)
	if err != nil {
		// a queue that cannot be read cannot take the operation either
		p.logger.Warn("offline queue state unknown, committing directly", zap.String("kind", kind), zap.Error(err))
	}
	if pending {
		queued := p.enqueue(ctx, op, batch, ErrBehindQueue)
		if p.nudge != nil {
			p.nudge()
		}
		return queued, nil
	}

	// an issued commit is never retracted, even if the caller goes away
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.committer.Commit(commitCtx, batch)
	switch {
	case err == nil:
		commitsTotal.WithLabelValues(kind, "committed").Inc()
		return false, nil
	case store.IsUnavailable(err):
		return p.enqueue(ctx, op, batch, err), nil
	case store.IsRejected(err):
		commitsTotal.WithLabelValues(kind, "rejected").Inc()
		return false, err
	default:
		commitsTotal.WithLabelValues(kind, "failed").Inc()
		return false, err
	}
}

// enqueue is best effort: losing the append itself (disk full, closed
// database) is logged as a dropped operation and the caller still sees
// success.
func (p *Pipeline) enqueue(ctx context.Context, op operations.Operation, batch *store.Batch, cause error) bool {
	kind := string(op.Kind())
	if err := p.queue.Enqueue(context.WithoutCancel(ctx), op); err != nil {
		commitsTotal.WithLabelValues(kind, "dropped").Inc()
		p.logger.Error("offline enqueue failed, operation dropped",
			zap.String("kind", kind),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return true
	}
	commitsTotal.WithLabelValues(kind, "queued").Inc()
	p.logger.Info("operation queued", zap.String("kind", kind), zap.NamedError("cause", cause))
	if p.view != nil {
		p.view.Stage(op.OperationID(), batch)
	}
	return true
}

// Claim adds the applied-operation marker of op to batch so the batch can
// commit at most once. Operations without an id are left unguarded.
func Claim(batch *store.Batch, op operations.Operation) {
	if id := op.OperationID(); id != "" {
		batch.Claim(id, string(op.Kind()))
	}
}
