package warmer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

type fakeLeaderboard struct {
	top   []db.CollectionVolume
	err   error
	since time.Time
	limit int
}

func (f *fakeLeaderboard) TopCollections(_ context.Context, since time.Time, limit int) ([]db.CollectionVolume, error) {
	f.since, f.limit = since, limit
	return f.top, f.err
}

type fakeRefresher struct {
	mu       sync.Mutex
	requests []charts.Request
	failFor  string
}

func (f *fakeRefresher) Refresh(_ context.Context, req charts.Request) (*charts.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.Collection != "" && req.Collection == f.failFor {
		return nil, errors.New("boom")
	}
	return &charts.Result{}, nil
}

func newTestApp(t *testing.T, lb Leaderboard, r Refresher) *App {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	return &App{
		Leaderboard: lb,
		Refresher:   r,
		Catalog:     charts.DefaultCatalog(),
		Pool:        pool,
		TopN:        2,
		Windows:     DefaultWindows,
		RunTimeout:  time.Minute,
		Status:      xsync.NewMap[string, TaskStatus](),
		now:         func() time.Time { return now },
		Logger:      zaptest.NewLogger(t),
	}
}

func TestWarmRefreshesTopCollectionsAndMarket(t *testing.T) {
	lb := &fakeLeaderboard{top: []db.CollectionVolume{{Collection: "spacebudz"}, {Collection: "clay-nation"}}}
	ref := &fakeRefresher{failFor: "clay-nation"}
	app := newTestApp(t, lb, ref)

	assert.False(t, app.Ready())
	stats, err := app.Warm(context.Background())
	require.NoError(t, err)
	assert.True(t, app.Ready())

	assert.Equal(t, 2, lb.limit)
	assert.Equal(t, time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC), lb.since)

	// 2 collections x 6 collection charts x 3 windows + 2 market charts x 3 windows
	assert.Equal(t, 42, stats.Tasks)
	assert.Equal(t, 18, stats.Failed)
	assert.Len(t, ref.requests, 42)
	assert.Equal(t, 42, app.Status.Size())

	st, ok := app.Status.Load(Task{Chart: "sales", Collection: "clay-nation", Window: "7d"}.Key())
	require.True(t, ok)
	assert.Equal(t, "boom", st.Error)

	st, ok = app.Status.Load(Task{Chart: "market-volume", Window: "24h"}.Key())
	require.True(t, ok)
	assert.Empty(t, st.Error)

	windows := map[timeseries.Window]int{}
	for _, req := range ref.requests {
		windows[req.Window]++
	}
	assert.Equal(t, map[timeseries.Window]int{
		timeseries.Window24h: 14,
		timeseries.Window7d:  14,
		timeseries.Window30d: 14,
	}, windows)
}

func TestWarmLeaderboardFailure(t *testing.T) {
	app := newTestApp(t, &fakeLeaderboard{err: errors.New("db down")}, &fakeRefresher{})
	_, err := app.Warm(context.Background())
	require.Error(t, err)
	assert.False(t, app.Ready())
}

func TestWarmWithoutCollectionsStillWarmsMarket(t *testing.T) {
	ref := &fakeRefresher{}
	app := newTestApp(t, &fakeLeaderboard{}, ref)
	stats, err := app.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Tasks)
	for _, req := range ref.requests {
		assert.Empty(t, req.Collection)
	}
}

func TestParseWindows(t *testing.T) {
	logger := zaptest.NewLogger(t)
	assert.Equal(t, DefaultWindows, parseWindows("", logger))
	assert.Equal(t, []timeseries.Window{timeseries.Window1h, timeseries.Window1y}, parseWindows("1h, 1y,1h,bogus", logger))
	assert.Equal(t, DefaultWindows, parseWindows("bogus", logger))
}

func TestSetupSchedulerRejectsBadSpec(t *testing.T) {
	app := newTestApp(t, &fakeLeaderboard{}, &fakeRefresher{})
	require.Error(t, app.SetupScheduler(context.Background(), "every now and then"))
	require.NoError(t, app.SetupScheduler(context.Background(), "0 */15 * * * *"))
	assert.Len(t, app.Cron.Entries(), 1)
}

func TestProbes(t *testing.T) {
	app := newTestApp(t, &fakeLeaderboard{}, &fakeRefresher{})
	router := app.Router()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)

	_, err := app.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	rec := get("/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]TaskStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Len(t, status, 6)
	assert.Contains(t, status, "market-buyers@30d")
}
