package live

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

func commitBag(t *testing.T, mem *memstore.Store, id string, kg float64) {
	t.Helper()
	b := store.NewBatch()
	b.Create(models.CollectionSilobags, id, models.Silobag{ID: id, Status: models.SilobagActive, CurrentKg: kg})
	require.NoError(t, mem.Commit(context.Background(), b))
}

func TestCacheFollowsCommits(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cache := NewCache(mem, mem, nil)
	cache.Run(ctx, models.CollectionSilobags)

	require.Eventually(t, func() bool {
		bag, err := cache.Silobag(context.Background(), "b1")
		return err == nil && bag.CurrentKg == 100
	}, time.Second, 5*time.Millisecond)

	b := store.NewBatch()
	b.Increment(models.CollectionSilobags, "b1", "current_kg", 50)
	require.NoError(t, mem.Commit(context.Background(), b))

	require.Eventually(t, func() bool {
		bag, err := cache.Silobag(context.Background(), "b1")
		return err == nil && bag.CurrentKg == 150
	}, time.Second, 5*time.Millisecond)

	cancel()
	cache.Wait()
}

func TestCacheServesSnapshotsOffline(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := NewCache(mem, mem, nil)
	cache.Run(ctx, models.CollectionSilobags)
	require.Eventually(t, func() bool {
		_, err := cache.Silobag(context.Background(), "b1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	mem.SetOnline(false)
	bag, err := cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, bag.CurrentKg)

	_, err = cache.Silobag(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestCacheFallsBackToReader(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 42)

	cache := NewCache(mem, mem, nil)
	bag, err := cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, bag.CurrentKg)

	_, err = cache.Session(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestCacheOverlaysStagedBatches(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 100)
	cache := NewCache(mem, mem, nil)
	mem.SetOnline(false)

	create := store.NewBatch()
	create.Claim("op-1", "silobag.create")
	create.Create(models.CollectionSilobags, "b2", models.Silobag{ID: "b2", Status: models.SilobagActive, CurrentKg: 7})
	cache.Stage("op-1", create)

	extract := store.NewBatch()
	extract.Increment(models.CollectionSilobags, "b2", "current_kg", -2, store.Where("status", models.SilobagActive))
	cache.Stage("op-2", extract)

	bag, err := cache.Silobag(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, 5.0, bag.CurrentKg)

	drop := store.NewBatch()
	drop.Delete(models.CollectionSilobags, "b2")
	cache.Stage("op-3", drop)
	_, err = cache.Silobag(context.Background(), "b2")
	assert.True(t, IsNotFound(err))
}

func TestCacheOverlayLeavesOutRejectedBatch(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 100)
	cache := NewCache(mem, mem, nil)

	b := store.NewBatch()
	b.Create(models.CollectionMovements, "mv1", models.SilobagMovement{ID: "mv1", SilobagID: "b1", KgChange: -10})
	b.Increment(models.CollectionSilobags, "b1", "current_kg", -10, store.Where("status", models.SilobagClosed))
	cache.Stage("op-1", b)

	_, err := cache.Get(context.Background(), models.CollectionMovements, "mv1")
	assert.True(t, IsNotFound(err))
	bag, err := cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, bag.CurrentKg)
}

func TestCacheStageReplacesSameOperation(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 100)
	cache := NewCache(mem, mem, nil)

	for i := 0; i < 2; i++ {
		b := store.NewBatch()
		b.Increment(models.CollectionSilobags, "b1", "current_kg", 5)
		cache.Stage("op-1", b)
	}
	bag, err := cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 105.0, bag.CurrentKg)
}

func TestCacheReloadsAfterSync(t *testing.T) {
	mem := memstore.New(nil)
	commitBag(t, mem, "b1", 100)

	var queued []PendingOp
	source := func(context.Context) ([]PendingOp, error) { return queued, nil }
	cache := NewCache(mem, mem, nil, WithPendingSource(source))

	b := store.NewBatch()
	b.Increment(models.CollectionSilobags, "b1", "current_kg", -40)
	queued = []PendingOp{{ID: "op-1", Batch: b}}
	require.NoError(t, cache.Restore(context.Background()))

	bag, err := cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, bag.CurrentKg)

	require.NoError(t, mem.Commit(context.Background(), b))
	queued = nil
	cache.SyncCompleted(context.Background(), 1)

	bag, err = cache.Silobag(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, bag.CurrentKg)
}
