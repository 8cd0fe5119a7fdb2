package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// backend is a REST server that can be switched off.
type backend struct {
	mu       sync.Mutex
	online   bool
	nextID   int
	requests []string
}

func (b *backend) setOnline(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = v
}

func (b *backend) log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.online {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodPost {
		b.nextID++
		fmt.Fprintf(w, `{"id": %d}`, b.nextID)
		return
	}
	_, _ = io.WriteString(w, `{}`)
}

type offlineRecords struct {
	workout, meal, body string
}

// recordOffline writes five queue entries across the three tables.
func recordOffline(t *testing.T, a *App) offlineRecords {
	t.Helper()
	ctx := context.Background()
	var recs offlineRecords
	var err error

	recs.workout, err = a.Store.SaveWorkout(ctx, &models.Workout{
		UserID: 1, Name: "Intervals", Date: "2024-06-01", DurationMinutes: intp(25),
	})
	require.NoError(t, err)

	recs.meal, err = a.Store.SaveNutritionLog(ctx, &models.NutritionLog{
		UserID: 1, MealType: models.MealLunch, FoodName: "Rice bowl", Calories: 640, Date: "2024-06-01",
	})
	require.NoError(t, err)

	weight := 72.4
	recs.body, err = a.Store.SaveBodyStat(ctx, &models.BodyStat{UserID: 1, WeightKg: &weight, Date: "2024-06-01"})
	require.NoError(t, err)

	weight = 72.1
	require.NoError(t, a.Store.UpdateBodyStat(ctx, &models.BodyStat{LocalID: recs.body, WeightKg: &weight, Date: "2024-06-01"}))
	require.NoError(t, a.Store.DeleteNutritionLog(ctx, recs.meal))
	return recs
}

func TestOfflineEditsSyncInOrderOnceOnline(t *testing.T) {
	remote := &backend{}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	a := openTestApp(t, testConfig(t, srv.URL+"/api"))
	ctx := context.Background()
	recs := recordOffline(t, a)

	count, err := a.Engine.CheckUnsyncedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, count)
	assert.Equal(t, syncpkg.StatePending, a.Engine.Status().State())

	// offline: every table stops at its first entry
	res, err := a.Engine.SyncAll(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncFailed))
	assert.Equal(t, 0, res.Dispatched)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 5, res.Remaining)
	assert.Equal(t, syncpkg.StateError, a.Engine.Status().State())
	assert.Nil(t, a.Engine.Status().LastSyncTime)

	w, err := a.Store.GetWorkout(ctx, recs.workout)
	require.NoError(t, err)
	assert.False(t, w.Synced)
	assert.Empty(t, w.RemoteID)

	// back online: the queue drains in FIFO order per table
	remote.setOnline(true)
	res, err = a.Engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Dispatched)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, int64(5), res.Swept)

	assert.Equal(t, []string{
		"POST /api/fitness/",
		"POST /api/nutrition/",
		"DELETE /api/nutrition/" + recs.meal,
		"POST /api/body/",
		"PUT /api/body/" + recs.body,
	}, remote.log())

	status := a.Engine.Status()
	assert.Equal(t, syncpkg.StateIdle, status.State())
	assert.Empty(t, status.Error)
	assert.NotNil(t, status.LastSyncTime)

	w, err = a.Store.GetWorkout(ctx, recs.workout)
	require.NoError(t, err)
	assert.True(t, w.Synced)
	assert.Equal(t, "1", w.RemoteID)

	b, err := a.Store.GetBodyStat(ctx, recs.body)
	require.NoError(t, err)
	assert.True(t, b.Synced)
	assert.Equal(t, "3", b.RemoteID)
	assert.InDelta(t, 72.1, *b.WeightKg, 0.001)

	_, err = a.Store.GetNutritionLog(ctx, recs.meal)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// nothing left to send
	res, err = a.Engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Dispatched)
	assert.Len(t, remote.log(), 5)
}

func TestOfflineDiscardPolicyDropsFailedTable(t *testing.T) {
	remote := &backend{}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/api")
	cfg.Sync.DiscardOnFailure = []string{string(models.TableNutrition)}
	a := openTestApp(t, cfg)
	ctx := context.Background()
	recs := recordOffline(t, a)

	res, err := a.Engine.SyncAll(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, res.Discarded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 3, res.Remaining)

	remote.setOnline(true)
	res, err = a.Engine.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dispatched)
	assert.Equal(t, []string{"POST /api/fitness/", "POST /api/body/", "PUT /api/body/" + recs.body}, remote.log())
}

func TestForegroundDrainsPendingEntries(t *testing.T) {
	remote := &backend{online: true}
	srv := httptest.NewServer(remote)
	defer srv.Close()

	a := openTestApp(t, testConfig(t, srv.URL+"/api"))
	ctx := context.Background()

	res, err := a.Engine.HandleLifecycleEvent(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = a.Store.SaveBodyStat(ctx, &models.BodyStat{UserID: 1, Date: "2024-06-02"})
	require.NoError(t, err)

	res, err = a.Engine.HandleLifecycleEvent(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, remote.log())

	res, err = a.Engine.HandleLifecycleEvent(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Dispatched)
	assert.Equal(t, []string{"POST /api/body/"}, remote.log())
}

func TestCreateWithoutIDIsNotResent(t *testing.T) {
	var mu sync.Mutex
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if r.Method == http.MethodPost {
			posts++
		}
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "Created")
	}))
	defer srv.Close()

	a := openTestApp(t, testConfig(t, srv.URL+"/api"))
	ctx := context.Background()
	id, err := a.Store.SaveNutritionLog(ctx, &models.NutritionLog{
		UserID: 1, MealType: models.MealDinner, FoodName: "Curry", Calories: 700, Date: "2024-06-01",
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := a.Engine.SyncAll(ctx)
		require.NoError(t, err)
	}

	mu.Lock()
	assert.Equal(t, 1, posts)
	mu.Unlock()

	count, err := a.Engine.CheckUnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := a.Store.GetNutritionLog(ctx, id)
	require.NoError(t, err)
	assert.True(t, n.Synced)
	assert.Empty(t, n.RemoteID)
}
