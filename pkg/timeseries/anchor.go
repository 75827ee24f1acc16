package timeseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// SourceQuery names one data source consulted for the earliest timestamp of an unbounded window.
type SourceQuery struct {
	Source         string
	TimestampField string
	// Filters are equality predicates, column to value.
	Filters map[string]string
}

// MinTimestampQuerier looks up min(TimestampField) for a source. The bool is false when no
// row matches.
type MinTimestampQuerier interface {
	MinTimestamp(ctx context.Context, q SourceQuery) (time.Time, bool, error)
}

// AnchorResolver computes the absolute start instant of a window.
type AnchorResolver struct {
	logger  *zap.Logger
	querier MinTimestampQuerier
	pool    pond.Pool
	now     func() time.Time
}

func NewAnchorResolver(logger *zap.Logger, querier MinTimestampQuerier, pool pond.Pool) *AnchorResolver {
	return &AnchorResolver{
		logger:  logger,
		querier: querier,
		pool:    pool,
		now:     time.Now,
	}
}

// WithClock replaces the wall clock, mostly for tests.
func (r *AnchorResolver) WithClock(now func() time.Time) *AnchorResolver {
	r.now = now
	return r
}

// Resolve returns now minus the window for bounded windows. For unbounded windows it returns
// the earliest timestamp across the non-empty sources, or now when every source is empty.
// Any failed lookup fails the whole resolution with ErrDataSourceUnavailable.
func (r *AnchorResolver) Resolve(ctx context.Context, w Window, sources ...SourceQuery) (time.Time, error) {
	now := r.now().UTC()
	if start, ok := w.Start(now); ok {
		return start, nil
	}
	if len(sources) == 0 {
		return now, nil
	}

	type result struct {
		ts    time.Time
		found bool
		err   error
	}
	results := make([]result, len(sources))

	group := r.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, src := range sources {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			ts, found, err := r.querier.MinTimestamp(groupCtx, src)
			if err != nil {
				results[i].err = &DataSourceError{Source: src.Source, Err: err}
				return results[i].err
			}
			results[i] = result{ts: ts, found: found}
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		r.logger.Warn("anchor lookup failed",
			zap.String("window", w.String()),
			zap.Int("sources", len(sources)),
			zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, fmt.Errorf("resolve anchor: %w", err)
	}
	if err := firstFailure(results, func(res result) error { return res.err }); err != nil {
		return time.Time{}, err
	}

	anchor := now
	found := false
	for _, res := range results {
		if !res.found {
			continue
		}
		if !found || res.ts.Before(anchor) {
			anchor = res.ts.UTC()
			found = true
		}
	}

	if !found {
		r.logger.Debug("all anchor sources empty, anchoring at now", zap.String("window", w.String()))
	}
	return anchor, nil
}

// firstFailure prefers a genuine source failure over the cancellations it caused in sibling lookups.
func firstFailure[T any](results []T, errOf func(T) error) error {
	var cancelled error
	for _, res := range results {
		err := errOf(res)
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if cancelled == nil {
			cancelled = err
		}
	}
	return cancelled
}
