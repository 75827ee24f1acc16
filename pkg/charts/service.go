package charts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

var (
	// ErrUnknownChart is returned when no chart of the requested scope has that name.
	ErrUnknownChart = errors.New("unknown chart")
	// ErrInvalidCollection is returned for a missing or malformed collection slug.
	ErrInvalidCollection = errors.New("invalid collection")
)

var collectionSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,127}$`)

// Store is the subset of the market store the chart service reads.
type Store interface {
	timeseries.MinTimestampQuerier
	AggregateBuckets(ctx context.Context, q db.BucketQuery) ([]timeseries.Record, error)
}

// Request selects one chart rendering.
type Request struct {
	Chart string
	// Collection is required for collection charts and must be empty for market charts.
	Collection string
	Window     timeseries.Window
}

// Result is a rendered chart. Payload is the JSON array of dense records.
type Result struct {
	Definition  Definition
	Window      timeseries.Window
	Granularity timeseries.Granularity
	Anchor      time.Time
	// Records is nil when the result was served from cache.
	Records []timeseries.Record
	Payload json.RawMessage
	Cached  bool
}

// Service renders charts through the timeseries pipeline and the response cache.
type Service struct {
	logger       *zap.Logger
	catalog      *Catalog
	store        Store
	cache        cache.Cache
	anchors      *timeseries.AnchorResolver
	materializer *timeseries.Materializer
}

// NewService wires the pipeline. cache may be nil to disable caching.
func NewService(logger *zap.Logger, catalog *Catalog, store Store, c cache.Cache, pool pond.Pool) *Service {
	logger = logger.With(zap.String("component", "charts"))
	return &Service{
		logger:       logger,
		catalog:      catalog,
		store:        store,
		cache:        c,
		anchors:      timeseries.NewAnchorResolver(logger, store, pool),
		materializer: timeseries.NewMaterializer(logger),
	}
}

// WithClock replaces the clock used for window anchors.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.anchors.WithClock(now)
	return s
}

// Catalog returns the registry the service renders from.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Render returns the cached chart when present, otherwise computes and caches it.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	def, req, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	key := cacheKey(def, req)
	if s.cache != nil {
		payload, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &Result{
				Definition:  def,
				Window:      req.Window,
				Granularity: timeseries.GranularityFor(req.Window),
				Payload:     payload,
				Cached:      true,
			}, nil
		}
	}

	res, err := s.compute(ctx, def, req)
	if err != nil {
		return nil, err
	}
	s.save(ctx, key, def, res)
	return res, nil
}

// Refresh recomputes the chart and overwrites its cache entry.
func (s *Service) Refresh(ctx context.Context, req Request) (*Result, error) {
	def, req, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	res, err := s.compute(ctx, def, req)
	if err != nil {
		return nil, err
	}
	s.save(ctx, cacheKey(def, req), def, res)
	return res, nil
}

// Invalidate drops the cached charts of a collection and the market charts that include it.
func (s *Service) Invalidate(ctx context.Context, collection string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	var total int64
	scopes := []string{cache.MarketScope}
	if collection != "" {
		scopes = append([]string{cache.Scope(collection)}, scopes...)
	}
	for _, scope := range scopes {
		n, err := s.cache.InvalidatePrefix(ctx, cache.ScopePrefix(scope))
		if err != nil {
			return total, fmt.Errorf("invalidate %s: %w", scope, err)
		}
		total += n
	}
	return total, nil
}

func (s *Service) prepare(req Request) (Definition, Request, error) {
	def, ok := s.catalog.Lookup(req.Chart)
	if !ok {
		return Definition{}, req, fmt.Errorf("%w: %q", ErrUnknownChart, req.Chart)
	}
	switch def.Scope {
	case ScopeCollection:
		if !collectionSlug.MatchString(req.Collection) {
			return Definition{}, req, fmt.Errorf("%w: %q", ErrInvalidCollection, req.Collection)
		}
	case ScopeMarket:
		if req.Collection != "" {
			return Definition{}, req, fmt.Errorf("%w: %q is a market chart", ErrUnknownChart, req.Chart)
		}
	}
	if req.Window == "" {
		req.Window = timeseries.DefaultWindow
	}
	return def, req, nil
}

func (s *Service) compute(ctx context.Context, def Definition, req Request) (*Result, error) {
	g := timeseries.GranularityFor(req.Window)

	var filters map[string]string
	if req.Collection != "" {
		filters = map[string]string{"collection": req.Collection}
	}

	anchorSources := def.anchorSources()
	queries := make([]timeseries.SourceQuery, len(anchorSources))
	for i, src := range anchorSources {
		queries[i] = timeseries.SourceQuery{
			Source:         src.String(),
			TimestampField: sources.TimestampField,
			Filters:        filters,
		}
	}

	anchor, err := s.anchors.Resolve(ctx, req.Window, queries...)
	if err != nil {
		return nil, err
	}

	sparse, err := s.store.AggregateBuckets(ctx, db.BucketQuery{
		Source:      def.Source,
		Granularity: g,
		From:        anchor,
		Filters:     filters,
		Metrics:     def.Metrics,
	})
	if err != nil {
		if errors.Is(err, db.ErrInvalidQuery) || ctx.Err() != nil {
			return nil, fmt.Errorf("aggregate %s: %w", def.Name, err)
		}
		return nil, &timeseries.DataSourceError{Source: def.Source.String(), Err: err}
	}

	dense := s.materializer.Materialize(anchor, sparse, g, def.Defaults, timeseries.Options{
		CarryForward: def.CarryForward,
		Empty:        def.Empty,
	})

	payload, err := json.Marshal(dense)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", def.Name, err)
	}

	s.logger.Debug("chart computed",
		zap.String("chart", def.Name),
		zap.String("collection", req.Collection),
		zap.String("window", req.Window.String()),
		zap.Stringer("granularity", g),
		zap.Time("anchor", anchor),
		zap.Int("sparse", len(sparse)),
		zap.Int("dense", len(dense)))

	return &Result{
		Definition:  def,
		Window:      req.Window,
		Granularity: g,
		Anchor:      anchor,
		Records:     dense,
		Payload:     payload,
	}, nil
}

// save writes the payload to the cache. Failures only log.
func (s *Service) save(ctx context.Context, key string, def Definition, res *Result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, res.Payload, def.TTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(def Definition, req Request) string {
	return cache.Key(cache.Scope(req.Collection), cache.Signature(def.Name, req.Collection, req.Window.String()))
}
