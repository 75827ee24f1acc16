package db

import (
	"testing"
	"time"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricValidate(t *testing.T) {
	tests := []struct {
		name    string
		metric  Metric
		source  sources.Source
		wantErr bool
	}{
		{"count", Metric{Name: "sales", Func: Count}, sources.Sales, false},
		{"sum price", Metric{Name: "volume", Func: Sum, Field: "price"}, sources.Sales, false},
		{"uniq buyer", Metric{Name: "buyers", Func: Uniq, Field: "buyer"}, sources.Sales, false},
		{"sum text column", Metric{Name: "x", Func: Sum, Field: "buyer"}, sources.Sales, true},
		{"unknown column", Metric{Name: "x", Func: Avg, Field: "fee"}, sources.Sales, true},
		{"price on transfers", Metric{Name: "x", Func: Min, Field: "price"}, sources.Transfers, true},
		{"bad name", Metric{Name: "volume; DROP", Func: Count}, sources.Sales, true},
		{"unknown func", Metric{Name: "x", Func: "median", Field: "price"}, sources.Sales, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metric.Validate(tt.source)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBucketQueryValidate(t *testing.T) {
	q := BucketQuery{
		Source:      sources.Sales,
		Granularity: timeseries.Daily,
		Filters:     map[string]string{"collection": "spacebudz"},
		Metrics:     []Metric{{Name: "sales", Func: Count}, {Name: "volume", Func: Sum, Field: "price"}},
	}
	require.NoError(t, q.Validate())

	dup := q
	dup.Metrics = []Metric{{Name: "sales", Func: Count}, {Name: "sales", Func: Count}}
	assert.ErrorIs(t, dup.Validate(), ErrInvalidQuery)

	empty := q
	empty.Metrics = nil
	assert.ErrorIs(t, empty.Validate(), ErrInvalidQuery)

	badFilter := q
	badFilter.Filters = map[string]string{"price": "10"}
	assert.ErrorIs(t, badFilter.Validate(), ErrInvalidQuery)
}

func TestResolveSource(t *testing.T) {
	src, err := ResolveSource(timeseries.SourceQuery{Source: "listings", TimestampField: "ts"})
	require.NoError(t, err)
	assert.Equal(t, sources.Listings, src)

	_, err = ResolveSource(timeseries.SourceQuery{Source: "mints", TimestampField: "ts"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestEventRow(t *testing.T) {
	ts := time.Date(2024, 1, 1, 3, 0, 0, 0, time.FixedZone("X", 3600))
	e := Event{Timestamp: ts, Collection: "c", Asset: "a", TxHash: "h", Price: timeseries.Float(12), Buyer: "b", Seller: "s", Marketplace: "jpg"}

	assert.Equal(t, []string{"ts", "collection", "asset", "tx_hash", "price", "buyer", "seller", "marketplace"}, InsertColumns(sources.Sales))
	row := e.Row(sources.Sales)
	require.Len(t, row, 8)
	assert.Equal(t, ts.UTC(), row[0])
	assert.Equal(t, timeseries.Float(12), row[4])
}
