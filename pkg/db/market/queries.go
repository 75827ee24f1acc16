package market

import (
	"context"
	"fmt"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// MinTimestamp returns the earliest event time of a source under the query filters.
func (db *DB) MinTimestamp(ctx context.Context, q timeseries.SourceQuery) (time.Time, bool, error) {
	source, err := marketdb.ResolveSource(q)
	if err != nil {
		return time.Time{}, false, err
	}

	query, args := minTimestampSQL(db.Name, source, q.Filters)

	var (
		n     uint64
		first time.Time
	)
	if err := db.QueryRow(ctx, query, args...).Scan(&n, &first); err != nil {
		return time.Time{}, false, fmt.Errorf("query min timestamp of %s failed: %w", source, err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return first.UTC(), true, nil
}

// AggregateBuckets runs the per-bucket aggregation and returns sparse records ascending.
func (db *DB) AggregateBuckets(ctx context.Context, q marketdb.BucketQuery) ([]timeseries.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args := bucketSQL(db.Name, q)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s buckets failed: %w", q.Source, err)
	}
	defer rows.Close()

	records := make([]timeseries.Record, 0)
	for rows.Next() {
		var bucket time.Time
		values := make([]*float64, len(q.Metrics))
		dest := make([]any, 0, len(values)+1)
		dest = append(dest, &bucket)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s bucket: %w", q.Source, err)
		}

		fields := make(map[string]*float64, len(values))
		for i, m := range q.Metrics {
			fields[m.Name] = values[i]
		}
		records = append(records, timeseries.Record{
			Key:    timeseries.KeyOf(bucket, q.Granularity),
			Fields: fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s buckets: %w", q.Source, err)
	}

	return records, nil
}

// TopCollections ranks collections by sales volume since the given instant.
func (db *DB) TopCollections(ctx context.Context, since time.Time, limit int) ([]marketdb.CollectionVolume, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []marketdb.CollectionVolume
	if err := db.Select(ctx, &out, topCollectionsSQL(db.Name), since.UTC(), limit); err != nil {
		return nil, fmt.Errorf("query top collections failed: %w", err)
	}
	return out, nil
}

// InsertEvents appends events in a single native batch.
func (db *DB) InsertEvents(ctx context.Context, source sources.Source, events []marketdb.Event) error {
	if !source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", marketdb.ErrInvalidQuery, source)
	}
	if len(events) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, insertSQL(db.Name, source))
	if err != nil {
		return fmt.Errorf("prepare %s batch: %w", source, err)
	}
	for _, e := range events {
		if err := batch.Append(e.Row(source)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s event: %w", source, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send %s batch: %w", source, err)
	}
	return nil
}
