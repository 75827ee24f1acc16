package market

import (
	"context"
	"fmt"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/clickhouse"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
)

// Event tables are partitioned by month and ordered by (collection, ts) so per-collection
// range scans and min(ts) lookups read a contiguous slice of each part.
const tableSettings = `ENGINE = %s
		PARTITION BY toYYYYMM(ts)
		ORDER BY (collection, ts)`

func (db *DB) createTable(ctx context.Context, source sources.Source, columns string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s
		) `+tableSettings,
		db.Name, source.TableName(), db.OnCluster(), columns, clickhouse.MergeTree)
	return db.Exec(ctx, query)
}

func (db *DB) initSales(ctx context.Context) error {
	return db.createTable(ctx, sources.Sales, `
			ts DateTime('UTC'),
			collection LowCardinality(String),
			asset String,
			tx_hash String,
			price Nullable(Float64),
			buyer String,
			seller String,
			marketplace LowCardinality(String)`)
}

func (db *DB) initTransfers(ctx context.Context) error {
	return db.createTable(ctx, sources.Transfers, `
			ts DateTime('UTC'),
			collection LowCardinality(String),
			asset String,
			tx_hash String,
			from_address String,
			to_address String,
			quantity Float64`)
}

func (db *DB) initListings(ctx context.Context) error {
	return db.createTable(ctx, sources.Listings, `
			ts DateTime('UTC'),
			collection LowCardinality(String),
			asset String,
			tx_hash String,
			price Nullable(Float64),
			seller String,
			marketplace LowCardinality(String)`)
}
