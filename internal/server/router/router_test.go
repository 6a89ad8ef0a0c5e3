package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/harvest/internal/dispatch"
	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/queue"
	"github.com/mamadbah2/harvest/internal/server/handlers"
	"github.com/mamadbah2/harvest/internal/service/harvest"
	"github.com/mamadbah2/harvest/internal/service/live"
	"github.com/mamadbah2/harvest/internal/service/logistics"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/service/silobag"
	"github.com/mamadbah2/harvest/internal/store/memstore"
)

const org = "org-1"

type app struct {
	engine http.Handler
	store  *memstore.Store
	cache  *live.Cache
}

func newApp(t *testing.T) *app {
	t.Helper()
	mem := memstore.New(nil)
	storage, err := queue.OpenBadger(queue.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	d := dispatch.New(mem, nil)
	q := queue.New(storage, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cache := live.NewCache(mem, mem, nil, live.WithPendingSource(func(ctx context.Context) ([]live.PendingOp, error) {
		return d.Pending(ctx, q)
	}))
	q.Subscribe(cache)
	cache.Run(ctx, models.CollectionSessions, models.CollectionRegisters, models.CollectionSilobags)
	pipeline := mutation.NewPipeline(mem, q, nil, mutation.WithLocalView(cache))

	engine := New(Handlers{
		Harvest:       handlers.NewHarvestHandler(harvest.NewService(pipeline, org, nil), cache, nil),
		Silobags:      handlers.NewSilobagHandler(silobag.NewService(pipeline, org, nil), cache, nil),
		Logistics:     handlers.NewLogisticsHandler(logistics.NewService(pipeline, org, nil), nil),
		Sync:          handlers.NewSyncHandler(q, nil),
		Subscriptions: handlers.NewSubscriptionHandler(mem, org, nil),
	}, nil)
	return &app{engine: engine, store: mem, cache: cache}
}

func (a *app) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (a *app) awaitSession(t *testing.T, id string, ok func(models.HarvestSession) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := a.cache.Session(context.Background(), id)
		return err == nil && ok(s)
	}, 2*time.Second, 10*time.Millisecond)
}

func startBody() map[string]any {
	return map[string]any{
		"session": map[string]any{
			"campaign_id":        "c1",
			"field_id":           "f1",
			"plot_id":            "p1",
			"crop_id":            "cr1",
			"harvest_manager_id": "m1",
			"harvester_ids":      []string{"h1"},
			"hectares":           12,
			"estimated_yield":    900,
		},
		"catalog": map[string]any{
			"campaigns":  []map[string]string{{"id": "c1", "name": "2025/26"}},
			"fields":     []map[string]string{{"id": "f1", "name": "La Esperanza"}},
			"plots":      []map[string]string{{"id": "p1", "name": "Lote 4"}},
			"crops":      []map[string]string{{"id": "cr1", "name": "Soja"}},
			"managers":   []map[string]string{{"id": "m1", "name": "Ana"}},
			"harvesters": []map[string]string{{"id": "h1", "name": "Contratista Sur"}},
		},
	}
}

func truckBody(weight float64) map[string]any {
	return map[string]any{
		"type":      "truck",
		"weight_kg": weight,
		"humidity":  14,
		"truck": map[string]any{
			"driver":        "Pedro",
			"license_plate": "AB123CD",
			"destination":   map[string]string{"id": "d1", "name": "Acopio"},
		},
	}
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	w, body := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionFlowWithOfflineSync(t *testing.T) {
	a := newApp(t)

	w, body := a.do(t, http.MethodPost, "/sessions", startBody())
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	a.awaitSession(t, id, func(models.HarvestSession) bool { return true })

	w, _ = a.do(t, http.MethodPost, "/sessions/"+id+"/registers", truckBody(10000))
	require.Equal(t, http.StatusCreated, w.Code)
	a.awaitSession(t, id, func(s models.HarvestSession) bool { return s.HarvestedKgs == 10000 })

	a.store.SetOnline(false)
	w, body = a.do(t, http.MethodPatch, "/sessions/"+id+"/progress", map[string]any{"status": "in-progress", "harvested_hectares": 10})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["queued"])

	w, body = a.do(t, http.MethodGet, "/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["pending"])

	w, body = a.do(t, http.MethodGet, "/sync/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["entries"], 1)

	a.store.SetOnline(true)
	w, body = a.do(t, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["replayed"])

	a.awaitSession(t, id, func(s models.HarvestSession) bool {
		return s.Status == models.SessionInProgress && s.Yields.Harvested == 1000
	})
}

func TestOfflineSessionAcceptsFollowUpWrites(t *testing.T) {
	a := newApp(t)
	a.store.SetOnline(false)

	w, body := a.do(t, http.MethodPost, "/sessions", startBody())
	require.Equal(t, http.StatusAccepted, w.Code)
	id := body["id"].(string)

	w, body = a.do(t, http.MethodPost, "/sessions/"+id+"/registers", truckBody(6000))
	require.Equal(t, http.StatusAccepted, w.Code)
	registerID := body["id"].(string)

	w, _ = a.do(t, http.MethodPatch, "/sessions/"+id+"/progress", map[string]any{"status": "in-progress", "harvested_hectares": 5})
	require.Equal(t, http.StatusAccepted, w.Code)

	s, err := a.cache.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, s.HarvestedKgs)
	assert.Equal(t, 1200.0, s.Yields.Harvested)

	w, _ = a.do(t, http.MethodDelete, "/sessions/"+id+"/registers/"+registerID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	a.store.SetOnline(true)
	w, body = a.do(t, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4, body["replayed"])

	a.awaitSession(t, id, func(s models.HarvestSession) bool {
		return s.Status == models.SessionInProgress && s.HarvestedKgs == 0 && s.HarvestedHectares == 5
	})
	_, err = a.cache.Register(context.Background(), registerID)
	assert.True(t, live.IsNotFound(err))
}

func TestOfflineSilobagAcceptsFollowUpWrites(t *testing.T) {
	a := newApp(t)
	a.store.SetOnline(false)

	w, body := a.do(t, http.MethodPost, "/silobags", map[string]any{
		"name":       "Bolsa 9",
		"field":      map[string]string{"id": "f1", "name": "La Esperanza"},
		"crop":       map[string]string{"id": "cr1", "name": "Maiz"},
		"initial_kg": 2000,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	id := body["id"].(string)

	w, _ = a.do(t, http.MethodPost, "/silobags/"+id+"/extractions", map[string]any{"kg": 500})
	require.Equal(t, http.StatusAccepted, w.Code)
	w, _ = a.do(t, http.MethodPost, "/silobags/"+id+"/close", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	bag, err := a.cache.Silobag(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SilobagClosed, bag.Status)

	a.store.SetOnline(true)
	w, body = a.do(t, http.MethodPost, "/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["replayed"])

	require.Eventually(t, func() bool {
		bag, err := a.cache.Silobag(context.Background(), id)
		return err == nil && bag.DifferenceKg != nil && *bag.DifferenceKg == 1500
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartSessionUnknownReference(t *testing.T) {
	a := newApp(t)
	body := startBody()
	body["session"].(map[string]any)["crop_id"] = "nope"

	w, out := a.do(t, http.MethodPost, "/sessions", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "crop", out["entity"])
}

func TestMalformedBody(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodPost, "/silobags", strings.NewReader("{"))
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSilobagCloseTwiceConflicts(t *testing.T) {
	a := newApp(t)
	w, body := a.do(t, http.MethodPost, "/silobags", map[string]any{
		"name":       "Bolsa 3",
		"field":      map[string]string{"id": "f1", "name": "La Esperanza"},
		"crop":       map[string]string{"id": "cr1", "name": "Maiz"},
		"initial_kg": 5000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)

	require.Eventually(t, func() bool {
		_, err := a.cache.Silobag(context.Background(), id)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	w, _ = a.do(t, http.MethodPost, "/silobags/"+id+"/extractions", map[string]any{"kg": 1200})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Eventually(t, func() bool {
		bag, err := a.cache.Silobag(context.Background(), id)
		return err == nil && bag.CurrentKg == 3800
	}, 2*time.Second, 10*time.Millisecond)

	w, _ = a.do(t, http.MethodPost, "/silobags/"+id+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		bag, err := a.cache.Silobag(context.Background(), id)
		return err == nil && bag.Status == models.SilobagClosed
	}, 2*time.Second, 10*time.Millisecond)

	w, _ = a.do(t, http.MethodPost, "/silobags/"+id+"/close", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownSilobag(t *testing.T) {
	a := newApp(t)
	require.Eventually(t, func() bool {
		_, err := a.cache.Silobag(context.Background(), "warmup")
		return live.IsNotFound(err)
	}, 2*time.Second, 10*time.Millisecond)

	w, _ := a.do(t, http.MethodPost, "/silobags/ghost/close", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogisticsRoutes(t *testing.T) {
	a := newApp(t)
	w, body := a.do(t, http.MethodPost, "/logistics", map[string]any{
		"field":       map[string]string{"id": "f1", "name": "La Esperanza"},
		"crop":        map[string]string{"id": "cr1", "name": "Soja"},
		"company":     "Transportes del Sur",
		"destination": map[string]string{"id": "d1", "name": "Puerto"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = a.do(t, http.MethodPatch, "/logistics/"+body["id"].(string)+"/status", map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, http.MethodPatch, "/logistics/x/status", map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubscriptionStreamsSnapshot(t *testing.T) {
	a := newApp(t)
	w, _ := a.do(t, http.MethodPost, "/silobags", map[string]any{
		"name":  "Bolsa 9",
		"field": map[string]string{"id": "f1", "name": "La Esperanza"},
		"crop":  map[string]string{"id": "cr1", "name": "Maiz"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/subscriptions/silo_bags?status=active", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	assert.Equal(t, "snapshot", event)
	assert.Contains(t, data, "Bolsa 9")
}

func TestSubscriptionUnknownCollection(t *testing.T) {
	a := newApp(t)
	w, _ := a.do(t, http.MethodGet, "/subscriptions/users", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
