package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/queue"
)

func TestSyncLogAppendsDrainOutcomes(t *testing.T) {
	sheets := &fakeSheets{}
	log := NewSyncLog(sheets, "org-1", nil)
	log.now = func() time.Time { return time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC) }

	log.SyncHalted(context.Background(), queue.Entry{ID: 7, Kind: operations.KindCloseSilobag}, errors.New("precondition failed"))
	log.SyncCompleted(context.Background(), 3)

	rows := sheets.appended[syncLogRange]
	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"2026-05-02T12:00:00Z", "org-1", "halted", uint64(7), "silobag.close", "precondition failed"}, rows[0])
	assert.Equal(t, []interface{}{"2026-05-02T12:00:00Z", "org-1", "completed", 3, "", ""}, rows[1])
}

type failingSheets struct{ fakeSheets }

func (failingSheets) AppendRows(context.Context, string, [][]interface{}) error {
	return errors.New("quota exceeded")
}

func TestSyncLogSwallowsAppendFailure(t *testing.T) {
	log := NewSyncLog(&failingSheets{}, "org-1", nil)
	assert.NotPanics(t, func() { log.SyncCompleted(context.Background(), 1) })
}
