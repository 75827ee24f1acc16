package query

import (
	"context"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/app/query/types"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/backend"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/logging"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/redis"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("query")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := backend.Open(ctx, logger, "query")
	if err != nil {
		logger.Fatal("Unable to initialize market database", zap.Error(err))
	}

	responseCache, err := cache.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize response cache", zap.Error(err))
	}

	pool := pond.NewPool(utils.EnvInt("ANCHOR_WORKERS", 8))

	app := &types.App{
		Store:        store,
		Cache:        responseCache,
		Charts:       charts.NewService(logger, charts.DefaultCatalog(), store, responseCache, pool),
		Pool:         pool,
		QueryTimeout: utils.EnvDuration("QUERY_TIMEOUT", defaultQueryTimeout),
		Logger:       logger,
	}

	stream := utils.Env("CACHE_INVALIDATION_STREAM", "")
	switch rc, ok := responseCache.(*cache.Redis); {
	case stream == "":
		logger.Info("Cache invalidation feed disabled")
	case !ok:
		logger.Warn("Cache invalidation feed needs the redis cache backend, ignoring",
			zap.String("stream", stream))
	default:
		consumer, err := redis.NewStreamConsumer(rc.Client(), redis.StreamConsumerConfig{
			Stream:   stream,
			Group:    utils.Env("CACHE_INVALIDATION_GROUP", ""),
			Consumer: utils.Env("HOSTNAME", "query"),
			Logger:   logger.With(zap.String("component", "invalidation")),
		})
		if err != nil {
			logger.Fatal("Unable to initialize invalidation consumer", zap.Error(err))
		}
		app.Invalidations = consumer
		logger.Info("Cache invalidation feed enabled", zap.String("stream", stream))
	}

	return app
}
