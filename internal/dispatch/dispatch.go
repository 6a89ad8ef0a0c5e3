// Package dispatch maps every queued operation kind back to the batch
// builder that produced it, so queued work replays through the same write
// path as a live call.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/service/harvest"
	"github.com/mamadbah2/harvest/internal/service/live"
	"github.com/mamadbah2/harvest/internal/service/logistics"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/service/silobag"
	"github.com/mamadbah2/harvest/internal/store"
)

// Dispatcher replays operations against the remote store.
type Dispatcher struct {
	committer store.Committer
	logger    *zap.Logger
}

// New returns a Dispatcher committing through committer.
func New(committer store.Committer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{committer: committer, logger: logger}
}

// Build returns the batch op commits. Kinds without a builder yield a
// *operations.ReplayDispatchError.
func Build(op operations.Operation) (*store.Batch, error) {
	switch o := op.(type) {
	case operations.StartHarvestSession:
		return harvest.BuildStartSession(o), nil
	case operations.UpdateHarvestManager:
		return harvest.BuildUpdateManager(o), nil
	case operations.UpsertHarvesters:
		return harvest.BuildUpsertHarvesters(o), nil
	case operations.UpdateSessionProgress:
		return harvest.BuildUpdateProgress(o), nil
	case operations.AddRegister:
		return harvest.BuildAddRegister(o), nil
	case operations.UpdateRegister:
		return harvest.BuildUpdateRegister(o), nil
	case operations.DeleteRegister:
		return harvest.BuildDeleteRegister(o), nil
	case operations.CreateSilobag:
		return silobag.BuildCreate(o), nil
	case operations.ExtractSilobag:
		return silobag.BuildExtract(o), nil
	case operations.CloseSilobag:
		return silobag.BuildClose(o), nil
	case operations.CreateLogistics:
		return logistics.BuildCreate(o), nil
	case operations.UpdateLogisticsStatus:
		return logistics.BuildUpdateStatus(o), nil
	case nil:
		return nil, &operations.ReplayDispatchError{}
	default:
		return nil, &operations.ReplayDispatchError{Kind: op.Kind()}
	}
}

// Replay rebuilds op's batch and commits it. An operation the store already
// applied, for instance because the entry could not be removed after an
// earlier replay, counts as replayed.
func (d *Dispatcher) Replay(ctx context.Context, op operations.Operation) error {
	batch, err := Build(op)
	if err != nil {
		return err
	}
	mutation.Claim(batch, op)
	if err := d.committer.Commit(ctx, batch); err != nil {
		if errors.Is(err, store.ErrAlreadyApplied) {
			d.logger.Info("operation already applied, skipping",
				zap.String("kind", string(op.Kind())),
				zap.String("op_id", op.OperationID()))
			return nil
		}
		return fmt.Errorf("replay %s: %w", op.Kind(), err)
	}
	d.logger.Debug("operation replayed", zap.String("kind", string(op.Kind())), zap.Int("intents", batch.Len()))
	return nil
}

// Lister exposes the queued entries in replay order.
type Lister interface {
	PeekAll(ctx context.Context) ([]queue.Entry, error)
}

// Pending rebuilds the batches of every queued operation, oldest first.
// Entries that no longer decode are skipped; replay reports them.
func (d *Dispatcher) Pending(ctx context.Context, lister Lister) ([]live.PendingOp, error) {
	entries, err := lister.PeekAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]live.PendingOp, 0, len(entries))
	for _, entry := range entries {
		op, err := operations.Decode(entry.Kind, entry.Payload)
		if err != nil {
			d.logger.Warn("queued entry not decodable", zap.Uint64("entry_id", entry.ID), zap.Error(err))
			continue
		}
		batch, err := Build(op)
		if err != nil {
			d.logger.Warn("queued entry has no builder", zap.Uint64("entry_id", entry.ID), zap.Error(err))
			continue
		}
		mutation.Claim(batch, op)
		id := op.OperationID()
		if id == "" {
			id = fmt.Sprintf("entry-%d", entry.ID)
		}
		out = append(out, live.PendingOp{ID: id, Batch: batch})
	}
	return out, nil
}
