package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/clickhouse"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
	"go.uber.org/zap"
)

// DB is the ClickHouse market event store. It implements db.MarketStore.
type DB struct {
	clickhouse.Client
	Name string
}

var _ marketdb.MarketStore = (*DB)(nil)

// New connects to ClickHouse and makes sure the market database and tables exist.
func New(ctx context.Context, logger *zap.Logger, component string) (*DB, error) {
	name := clickhouse.SanitizeName(utils.Env("MARKET_DB", "nftconomy_market"))
	poolConfig := clickhouse.GetPoolConfigForComponent(component)

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	marketDB := &DB{Client: client, Name: name}
	if err := marketDB.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := marketDB.SwitchToTargetDatabase(ctx); err != nil {
		_ = marketDB.Close()
		return nil, err
	}

	return marketDB, nil
}

// DatabaseName returns the ClickHouse database backing the store.
func (db *DB) DatabaseName() string {
	return db.Name
}

// InitializeDB creates the database and the event tables concurrently.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"sales_events", db.initSales},
		{"transfers_events", db.initTransfers},
		{"listings_events", db.initListings},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))

	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			db.Logger.Debug("Initializing table", zap.String("table", name))
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	db.Logger.Info("Market database initialized",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(initStart)))
	return nil
}
