package logistics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/harvest/internal/dispatch"
	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/service/logistics"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/store"
	"github.com/mamadbah2/harvest/internal/store/memstore"
)

type captureQueue struct {
	ops []operations.Operation
}

func (c *captureQueue) Enqueue(_ context.Context, op operations.Operation) error {
	c.ops = append(c.ops, op)
	return nil
}

func (c *captureQueue) Pending(context.Context) (bool, error) {
	return len(c.ops) > 0, nil
}

func order() models.LogisticsInput {
	return models.LogisticsInput{
		Field:        models.Ref{ID: "f1", Name: "La Esperanza"},
		Crop:         models.Ref{ID: "cr1", Name: "Soja"},
		Company:      "Transportes del Sur",
		Driver:       "Marta",
		LicensePlate: "AC987ZX",
		Destination:  models.Ref{ID: "d1", Name: "Puerto Rosario"},
	}
}

func TestCreateAndAdvance(t *testing.T) {
	mem := memstore.New(nil)
	svc := logistics.NewService(mutation.NewPipeline(mem, &captureQueue{}, nil), "org-1", nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, order())
	require.NoError(t, err)

	doc, err := mem.Get(ctx, models.CollectionLogistics, res.ID)
	require.NoError(t, err)
	var got models.Logistics
	require.NoError(t, store.Decode(doc, &got))
	assert.Equal(t, models.LogisticsInTransit, got.Status)
	assert.Equal(t, "org-1", got.OrganizationID)
	assert.False(t, got.Date.IsZero())

	_, err = svc.UpdateStatus(ctx, res.ID, models.LogisticsStatusInput{Status: models.LogisticsDelivered})
	require.NoError(t, err)
	doc, err = mem.Get(ctx, models.CollectionLogistics, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "delivered", doc["status"])
}

func TestCreateRequiresCompany(t *testing.T) {
	q := &captureQueue{}
	svc := logistics.NewService(mutation.NewPipeline(memstore.New(nil), q, nil), "org-1", nil)
	in := order()
	in.Company = ""

	_, err := svc.Create(context.Background(), in)
	assert.True(t, models.IsValidationError(err))
	assert.Empty(t, q.ops)
}

func TestUpdateStatusOfMissingOrderRejected(t *testing.T) {
	q := &captureQueue{}
	svc := logistics.NewService(mutation.NewPipeline(memstore.New(nil), q, nil), "org-1", nil)

	_, err := svc.UpdateStatus(context.Background(), "ghost", models.LogisticsStatusInput{Status: models.LogisticsCancelled})
	assert.True(t, store.IsRejected(err))
	assert.Empty(t, q.ops)
}

func TestCreateWhileOfflineQueuesOperation(t *testing.T) {
	mem := memstore.New(nil)
	mem.SetOnline(false)
	q := &captureQueue{}
	svc := logistics.NewService(mutation.NewPipeline(mem, q, nil), "org-1", nil)

	res, err := svc.Create(context.Background(), order())
	require.NoError(t, err)
	assert.True(t, res.Queued)
	require.Len(t, q.ops, 1)
	queued, ok := q.ops[0].(operations.CreateLogistics)
	require.True(t, ok)
	assert.Equal(t, res.ID, queued.Logistics.ID)
}

func TestStatusChangeWaitsForQueuedChange(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New(nil)
	storage, err := queue.OpenBadger(queue.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	q := queue.New(storage, dispatch.New(mem, nil), nil)
	svc := logistics.NewService(mutation.NewPipeline(mem, q, nil), "org-1", nil)

	res, err := svc.Create(ctx, order())
	require.NoError(t, err)

	mem.SetOnline(false)
	delivered, err := svc.UpdateStatus(ctx, res.ID, models.LogisticsStatusInput{Status: models.LogisticsDelivered})
	require.NoError(t, err)
	require.True(t, delivered.Queued)

	mem.SetOnline(true)
	cancelled, err := svc.UpdateStatus(ctx, res.ID, models.LogisticsStatusInput{Status: models.LogisticsCancelled})
	require.NoError(t, err)
	assert.True(t, cancelled.Queued)

	doc, err := mem.Get(ctx, models.CollectionLogistics, res.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.LogisticsInTransit), doc["status"])

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Replayed)

	doc, err = mem.Get(ctx, models.CollectionLogistics, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", doc["status"])
}
