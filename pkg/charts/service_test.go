package charts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

type minStub struct {
	ts    time.Time
	found bool
	err   error
}

type fakeStore struct {
	mu      sync.Mutex
	mins    map[string]minStub
	minSeen []timeseries.SourceQuery
	buckets []timeseries.Record
	aggErr  error
	queries []db.BucketQuery
}

func (f *fakeStore) MinTimestamp(_ context.Context, q timeseries.SourceQuery) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minSeen = append(f.minSeen, q)
	s := f.mins[q.Source]
	return s.ts, s.found, s.err
}

func (f *fakeStore) AggregateBuckets(_ context.Context, q db.BucketQuery) ([]timeseries.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	return f.buckets, nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) InvalidatePrefix(context.Context, string) (int64, error) {
	return 0, errors.New("cache down")
}
func (failingCache) Close() error { return nil }

func newTestService(t *testing.T, store Store, c cache.Cache, now time.Time) *Service {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	return NewService(zaptest.NewLogger(t), DefaultCatalog(), store, c, pool).
		WithClock(func() time.Time { return now })
}

var hourly = timeseries.Granularity{Unit: timeseries.UnitHour, Stride: 1}

func hourRecord(t time.Time, sales, volume float64) timeseries.Record {
	return timeseries.Record{
		Key: timeseries.KeyOf(t, hourly),
		Fields: map[string]*float64{
			"sales":  timeseries.Float(sales),
			"volume": timeseries.Float(volume),
		},
	}
}

func volumes(t *testing.T, records []timeseries.Record) []float64 {
	t.Helper()
	out := make([]float64, len(records))
	for i, r := range records {
		v, ok := r.Value("volume")
		require.True(t, ok)
		out[i] = v
	}
	return out
}

func TestRenderCollectionChartFillsGapsAndCaches(t *testing.T) {
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	store := &fakeStore{buckets: []timeseries.Record{
		hourRecord(time.Date(2024, 5, 9, 9, 0, 0, 0, time.UTC), 1, 10),
		hourRecord(time.Date(2024, 5, 9, 11, 0, 0, 0, time.UTC), 2, 20),
	}}
	mem := cache.NewMemory()
	svc := newTestService(t, store, mem, now)

	req := Request{Chart: "sales", Collection: "spacebudz", Window: timeseries.Window24h}
	res, err := svc.Render(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, time.Date(2024, 5, 9, 6, 0, 0, 0, time.UTC), res.Anchor)
	assert.Equal(t, hourly, res.Granularity)
	assert.Equal(t, []float64{0, 0, 0, 10, 0, 20}, volumes(t, res.Records))

	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, res.Anchor, q.From)
	assert.Equal(t, map[string]string{"collection": "spacebudz"}, q.Filters)
	assert.Empty(t, store.minSeen, "bounded windows never look up the earliest event")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(res.Payload, &decoded))
	require.Len(t, decoded, 6)
	assert.Equal(t, "2024-05-09T09:00:00Z", decoded[3][timeseries.TimestampField])

	again, err := svc.Render(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Nil(t, again.Records)
	assert.JSONEq(t, string(res.Payload), string(again.Payload))
	assert.Len(t, store.queries, 1)

	// A different window is a different entry.
	_, err = svc.Render(context.Background(), Request{Chart: "sales", Collection: "spacebudz", Window: timeseries.Window7d})
	require.NoError(t, err)
	assert.Len(t, store.queries, 2)
}

func TestRenderMarketChartUnboundedAnchorsOnEarliestSource(t *testing.T) {
	store := &fakeStore{mins: map[string]minStub{
		"sales":     {ts: time.Date(2022, 5, 1, 10, 0, 0, 0, time.UTC), found: true},
		"transfers": {ts: time.Date(2022, 3, 15, 8, 30, 0, 0, time.UTC), found: true},
	}}
	svc := newTestService(t, store, nil, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	res, err := svc.Render(context.Background(), Request{Chart: "market-volume"})
	require.NoError(t, err)
	assert.Equal(t, timeseries.WindowUnbounded, res.Window)
	assert.Equal(t, timeseries.Daily, res.Granularity)
	assert.JSONEq(t, `[{"bucketTimestamp":"2022-03-15T00:00:00Z","volume":0,"sales":0}]`, string(res.Payload))

	require.Len(t, store.minSeen, 2)
	for _, q := range store.minSeen {
		assert.Nil(t, q.Filters)
		assert.Equal(t, "ts", q.TimestampField)
	}
}

func TestRenderEmptyNonePolicy(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, nil, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	res, err := svc.Render(context.Background(), Request{Chart: "market-buyers", Window: timeseries.Window30d})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.JSONEq(t, `[]`, string(res.Payload))
}

func TestRenderRequestValidation(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, nil, time.Now())
	ctx := context.Background()

	_, err := svc.Render(ctx, Request{Chart: "nope", Collection: "spacebudz"})
	require.ErrorIs(t, err, ErrUnknownChart)

	_, err = svc.Render(ctx, Request{Chart: "market-volume", Collection: "spacebudz"})
	require.ErrorIs(t, err, ErrUnknownChart)

	_, err = svc.Render(ctx, Request{Chart: "sales"})
	require.ErrorIs(t, err, ErrInvalidCollection)

	_, err = svc.Render(ctx, Request{Chart: "sales", Collection: "Drop Table"})
	require.ErrorIs(t, err, ErrInvalidCollection)
}

func TestRenderSourceFailures(t *testing.T) {
	ctx := context.Background()

	store := &fakeStore{aggErr: errors.New("connection refused")}
	svc := newTestService(t, store, nil, time.Now())
	_, err := svc.Render(ctx, Request{Chart: "transfers", Collection: "clay-nation", Window: timeseries.Window1h})
	require.ErrorIs(t, err, timeseries.ErrDataSourceUnavailable)
	var dsErr *timeseries.DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "transfers", dsErr.Source)

	store = &fakeStore{mins: map[string]minStub{"sales": {err: errors.New("timeout")}}}
	svc = newTestService(t, store, nil, time.Now())
	_, err = svc.Render(ctx, Request{Chart: "floor-price", Collection: "clay-nation"})
	require.ErrorIs(t, err, timeseries.ErrDataSourceUnavailable)
	assert.Empty(t, store.queries)

	store = &fakeStore{aggErr: db.ErrInvalidQuery}
	svc = newTestService(t, store, nil, time.Now())
	_, err = svc.Render(ctx, Request{Chart: "sales", Collection: "clay-nation", Window: timeseries.Window1h})
	require.ErrorIs(t, err, db.ErrInvalidQuery)
	assert.NotErrorIs(t, err, timeseries.ErrDataSourceUnavailable)
}

func TestRenderSurvivesCacheFailures(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, failingCache{}, time.Now())
	res, err := svc.Render(context.Background(), Request{Chart: "sales", Collection: "spacebudz", Window: timeseries.Window24h})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	_, err = svc.Invalidate(context.Background(), "spacebudz")
	require.Error(t, err)
}

func TestRefreshOverwritesCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	mem := cache.NewMemory()
	svc := newTestService(t, store, mem, now)
	req := Request{Chart: "sales", Collection: "spacebudz", Window: timeseries.Window24h}

	first, err := svc.Render(ctx, req)
	require.NoError(t, err)

	store.buckets = []timeseries.Record{hourRecord(time.Date(2024, 5, 9, 7, 0, 0, 0, time.UTC), 1, 5)}
	refreshed, err := svc.Refresh(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, string(first.Payload), string(refreshed.Payload))

	cached, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.JSONEq(t, string(refreshed.Payload), string(cached.Payload))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	svc := newTestService(t, &fakeStore{}, mem, time.Now())

	for _, req := range []Request{
		{Chart: "sales", Collection: "spacebudz", Window: timeseries.Window24h},
		{Chart: "transfers", Collection: "spacebudz", Window: timeseries.Window24h},
		{Chart: "sales", Collection: "clay-nation", Window: timeseries.Window24h},
		{Chart: "market-volume", Window: timeseries.Window24h},
	} {
		_, err := svc.Render(ctx, req)
		require.NoError(t, err)
	}
	require.Equal(t, 4, mem.Len())

	n, err := svc.Invalidate(ctx, "spacebudz")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, 1, mem.Len())

	noCache := newTestService(t, &fakeStore{}, nil, time.Now())
	n, err = noCache.Invalidate(ctx, "spacebudz")
	require.NoError(t, err)
	assert.Zero(t, n)
}
