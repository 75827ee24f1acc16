package market

import (
	"testing"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
	"github.com/stretchr/testify/assert"
)

func TestBucketExpr(t *testing.T) {
	tests := []struct {
		window timeseries.Window
		want   string
	}{
		{timeseries.Window15m, "addSeconds(toStartOfMinute(ts), intDiv(toSecond(ts), 10) * 10)"},
		{timeseries.Window6h, "addMinutes(toStartOfHour(ts), intDiv(toMinute(ts), 5) * 5)"},
		{timeseries.Window7d, "addHours(toStartOfDay(ts), intDiv(toHour(ts), 2) * 2)"},
		{timeseries.Window30d, "toStartOfDay(ts)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			assert.Equal(t, tt.want, bucketExpr(timeseries.GranularityFor(tt.window)))
		})
	}
}

func TestAggregateExpr(t *testing.T) {
	assert.Equal(t, "toNullable(toFloat64(count()))", aggregateExpr(marketdb.Metric{Name: "sales", Func: marketdb.Count}))
	assert.Equal(t, "toNullable(toFloat64(sum(price)))", aggregateExpr(marketdb.Metric{Name: "volume", Func: marketdb.Sum, Field: "price"}))
	assert.Equal(t, "toNullable(toFloat64(uniqExact(buyer)))", aggregateExpr(marketdb.Metric{Name: "buyers", Func: marketdb.Uniq, Field: "buyer"}))
}

func TestMinTimestampSQL(t *testing.T) {
	query, args := minTimestampSQL("market", sources.Listings, map[string]string{"marketplace": "jpg", "collection": "spacebudz"})

	assert.Equal(t, `SELECT count() AS n, min(ts) AS first FROM "market"."listings_events" WHERE collection = ? AND marketplace = ?`, query)
	assert.Equal(t, []any{"spacebudz", "jpg"}, args)

	query, args = minTimestampSQL("market", sources.Sales, nil)
	assert.Equal(t, `SELECT count() AS n, min(ts) AS first FROM "market"."sales_events"`, query)
	assert.Empty(t, args)
}

func TestBucketSQL(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := marketdb.BucketQuery{
		Source:      sources.Sales,
		Granularity: timeseries.GranularityFor(timeseries.Window24h),
		From:        from,
		Filters:     map[string]string{"collection": "spacebudz"},
		Metrics: []marketdb.Metric{
			{Name: "sales", Func: marketdb.Count},
			{Name: "volume", Func: marketdb.Sum, Field: "price"},
		},
	}

	query, args := bucketSQL("market", q)

	assert.Equal(t,
		`SELECT addHours(toStartOfDay(ts), intDiv(toHour(ts), 1) * 1) AS bucket, `+
			`toNullable(toFloat64(count())) AS m0, toNullable(toFloat64(sum(price))) AS m1 `+
			`FROM "market"."sales_events" WHERE ts >= ? AND collection = ? GROUP BY bucket ORDER BY bucket`,
		query)
	assert.Equal(t, []any{from, "spacebudz"}, args)
}

func TestBucketSQLWithUpperBound(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	_, args := bucketSQL("market", marketdb.BucketQuery{
		Source:      sources.Transfers,
		Granularity: timeseries.Daily,
		From:        from,
		To:          to,
		Metrics:     []marketdb.Metric{{Name: "transfers", Func: marketdb.Count}},
	})
	assert.Equal(t, []any{from, to}, args)
}

func TestInsertSQL(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "market"."transfers_events" (ts, collection, asset, tx_hash, from_address, to_address, quantity)`,
		insertSQL("market", sources.Transfers))
}
