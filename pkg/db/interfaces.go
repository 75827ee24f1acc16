package db

import (
	"context"
	"time"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// MarketStore is the query side of the market event database. ClickHouse and PostgreSQL
// implementations share this contract so the chart service does not care which one backs it.
type MarketStore interface {
	timeseries.MinTimestampQuerier

	// AggregateBuckets returns one record per non-empty bucket, ascending.
	AggregateBuckets(ctx context.Context, q BucketQuery) ([]timeseries.Record, error)
	// TopCollections ranks collections by sales volume since the given instant.
	TopCollections(ctx context.Context, since time.Time, limit int) ([]CollectionVolume, error)
	// InsertEvents appends events to the source table.
	InsertEvents(ctx context.Context, source sources.Source, events []Event) error

	InitializeDB(ctx context.Context) error
	Ping(ctx context.Context) error
	DatabaseName() string
	Close() error
}

// CollectionVolume is one row of the collection leaderboard.
type CollectionVolume struct {
	Collection string  `json:"collection" ch:"collection" db:"collection"`
	Volume     float64 `json:"volume" ch:"volume" db:"volume"`
	Sales      uint64  `json:"sales" ch:"sales" db:"sales"`
}
