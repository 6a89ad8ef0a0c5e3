package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/store"
	"github.com/mamadbah2/harvest/internal/store/memstore"
)

type fakeSheets struct {
	replaced map[string][][]interface{}
	appended map[string][][]interface{}
}

func (f *fakeSheets) ReplaceRange(_ context.Context, sheetRange string, rows [][]interface{}) error {
	if f.replaced == nil {
		f.replaced = map[string][][]interface{}{}
	}
	f.replaced[sheetRange] = rows
	return nil
}

func (f *fakeSheets) AppendRows(_ context.Context, sheetRange string, rows [][]interface{}) error {
	if f.appended == nil {
		f.appended = map[string][][]interface{}{}
	}
	f.appended[sheetRange] = append(f.appended[sheetRange], rows...)
	return nil
}

func TestRunWritesSummaries(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New(nil)
	date := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	diff := 3800.0

	b := store.NewBatch()
	b.Create(models.CollectionSessions, "s1", models.HarvestSession{
		ID: "s1", OrganizationID: "org-1", Field: models.Ref{ID: "f1", Name: "Norte"},
		Status: models.SessionInProgress, Hectares: 12, HarvestedKgs: 10000, HarvestedHectares: 10,
		Yields: models.ComputeYields(10000, 10, 12, 900), Date: date,
	})
	b.Create(models.CollectionSessions, "s2", models.HarvestSession{ID: "s2", OrganizationID: "other-org"})
	b.Create(models.CollectionSilobags, "b1", models.Silobag{
		ID: "b1", OrganizationID: "org-1", Name: "Bolsa 1", Status: models.SilobagClosed, InitialKg: 5000, DifferenceKg: &diff, Date: date,
	})
	require.NoError(t, mem.Commit(ctx, b))

	sheets := &fakeSheets{}
	require.NoError(t, NewService(mem, sheets, "org-1", nil).Run(ctx))

	sessions := sheets.replaced[sessionsRange]
	require.Len(t, sessions, 2)
	assert.Equal(t, sessionHeader, sessions[0])
	row := sessions[1]
	assert.Equal(t, "s1", row[0])
	assert.Equal(t, "2026-04-10", row[1])
	assert.Equal(t, "Norte", row[3])
	assert.Equal(t, 833.33, row[12])

	bags := sheets.replaced[silobagsRange]
	require.Len(t, bags, 2)
	assert.Equal(t, "closed", bags[1][5])
	assert.Equal(t, 3800.0, bags[1][8])
}

func TestRunFailsWhenStoreUnreachable(t *testing.T) {
	mem := memstore.New(nil)
	mem.SetOnline(false)
	sheets := &fakeSheets{}

	err := NewService(mem, sheets, "org-1", nil).Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, sheets.replaced)
}
