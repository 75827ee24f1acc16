package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/redis"
)

type App struct {
	Store  db.MarketStore
	Cache  cache.Cache
	Charts *charts.Service
	// Pool runs the anchor lookups of every request.
	Pool pond.Pool
	// Invalidations is nil unless CACHE_INVALIDATION_STREAM is configured.
	Invalidations *redis.StreamConsumer
	QueryTimeout  time.Duration
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// HandleInvalidation drops the cached charts named by a stream entry.
func (a *App) HandleInvalidation(ctx context.Context, msg redis.Message) error {
	collection := msg.GetCollection()
	removed, err := a.Charts.Invalidate(ctx, collection)
	if err != nil {
		return err
	}
	a.Logger.Debug("Cache invalidated",
		zap.String("id", msg.ID),
		zap.String("collection", collection),
		zap.Int64("removed", removed))
	return nil
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	if a.Invalidations != nil {
		go func() {
			if err := a.Invalidations.Run(ctx, a.HandleInvalidation); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Invalidation consumer stopped", zap.Error(err))
			}
		}()
	}

	go cache.Maintain(ctx, a.Cache, time.Minute, a.Logger.With(zap.String("component", "cache")))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Pool != nil {
		a.Pool.StopAndWait()
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Error("Failed to close cache", zap.Error(err))
		}
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
