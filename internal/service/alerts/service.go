// Package alerts notifies the operator over WhatsApp when offline-queue
// replays finish or get stuck.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/queue"
	client "github.com/mamadbah2/harvest/pkg/clients/whatsapp"
)

const sendTimeout = 20 * time.Second

// SyncNotifier implements queue.Listener.
type SyncNotifier struct {
	client     client.Client
	operatorID string
	logger     *zap.Logger

	mu         sync.Mutex
	lastHalted uint64
}

var _ queue.Listener = (*SyncNotifier)(nil)

// NewSyncNotifier wires a notifier that messages operatorID.
func NewSyncNotifier(c client.Client, operatorID string, logger *zap.Logger) *SyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncNotifier{client: c, operatorID: operatorID, logger: logger}
}

// SyncCompleted reports a successful replay.
func (n *SyncNotifier) SyncCompleted(ctx context.Context, replayed int) {
	n.mu.Lock()
	n.lastHalted = 0
	n.mu.Unlock()

	n.send(ctx, fmt.Sprintf("Sync complete: %d offline change(s) uploaded.", replayed))
}

// SyncHalted reports a stuck entry once; repeated halts on the same entry
// stay quiet until it clears.
func (n *SyncNotifier) SyncHalted(ctx context.Context, entry queue.Entry, err error) {
	n.mu.Lock()
	repeat := n.lastHalted == entry.ID
	n.lastHalted = entry.ID
	n.mu.Unlock()
	if repeat {
		return
	}

	enqueued := time.UnixMilli(entry.EnqueuedAt).UTC().Format(time.RFC3339)
	n.send(ctx, fmt.Sprintf("Sync halted at %s (queued %s, entry #%d): %v", entry.Kind, enqueued, entry.ID, err))
}

func (n *SyncNotifier) send(ctx context.Context, body string) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if _, err := n.client.SendTextMessage(sendCtx, client.SendTextMessageRequest{To: n.operatorID, Body: body}); err != nil {
		n.logger.Warn("failed to send sync alert", zap.Error(err))
		return
	}
	n.logger.Info("sync alert sent", zap.String("to", n.operatorID))
}
