package export

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/queue"
	repo "github.com/mamadbah2/harvest/internal/repository/sheets"
)

const (
	syncLogRange  = "SyncLog!A:F"
	appendTimeout = 20 * time.Second
)

// SyncLog appends one row per drain outcome to the SyncLog tab.
type SyncLog struct {
	sheets         repo.Repository
	organizationID string
	logger         *zap.Logger
	now            func() time.Time
}

var _ queue.Listener = (*SyncLog)(nil)

// NewSyncLog wires a drain log writing through sheets.
func NewSyncLog(sheets repo.Repository, organizationID string, logger *zap.Logger) *SyncLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncLog{sheets: sheets, organizationID: organizationID, logger: logger, now: time.Now}
}

// SyncCompleted logs a drain that emptied the queue.
func (l *SyncLog) SyncCompleted(ctx context.Context, replayed int) {
	l.append(ctx, []interface{}{l.stamp(), l.organizationID, "completed", replayed, "", ""})
}

// SyncHalted logs the entry a drain stopped at.
func (l *SyncLog) SyncHalted(ctx context.Context, entry queue.Entry, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	l.append(ctx, []interface{}{l.stamp(), l.organizationID, "halted", entry.ID, string(entry.Kind), reason})
}

func (l *SyncLog) stamp() string {
	return l.now().UTC().Format(time.RFC3339)
}

func (l *SyncLog) append(ctx context.Context, row []interface{}) {
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := l.sheets.AppendRows(appendCtx, syncLogRange, [][]interface{}{row}); err != nil {
		l.logger.Warn("failed to append sync log row", zap.Error(err))
	}
}
