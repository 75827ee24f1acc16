package market

import (
	"context"
	"fmt"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/postgres"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// DB is the PostgreSQL market event store. It implements db.MarketStore.
type DB struct {
	postgres.Client
}

var _ marketdb.MarketStore = (*DB)(nil)

// New connects to POSTGRES_URL and creates the event tables.
func New(ctx context.Context, logger *zap.Logger, component string) (*DB, error) {
	poolConfig := postgres.GetPoolConfigForComponent(component)
	client, err := postgres.New(ctx, logger.With(zap.String("component", poolConfig.Component)), poolConfig)
	if err != nil {
		return nil, err
	}
	return open(ctx, client)
}

// NewWithClient wraps an existing pool, creating the event tables if needed.
func NewWithClient(ctx context.Context, client postgres.Client) (*DB, error) {
	return open(ctx, client)
}

func open(ctx context.Context, client postgres.Client) (*DB, error) {
	marketDB := &DB{Client: client}
	if err := marketDB.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return marketDB, nil
}

// InitializeDB creates every event table inside one transaction.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	initOps := []struct {
		source  sources.Source
		columns string
	}{
		{sources.Sales, `
			price DOUBLE PRECISION,
			buyer TEXT NOT NULL DEFAULT '',
			seller TEXT NOT NULL DEFAULT '',
			marketplace TEXT NOT NULL DEFAULT ''`},
		{sources.Transfers, `
			from_address TEXT NOT NULL DEFAULT '',
			to_address TEXT NOT NULL DEFAULT '',
			quantity DOUBLE PRECISION NOT NULL DEFAULT 1`},
		{sources.Listings, `
			price DOUBLE PRECISION,
			seller TEXT NOT NULL DEFAULT '',
			marketplace TEXT NOT NULL DEFAULT ''`},
	}

	err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, op := range initOps {
			table := op.source.TableName()
			db.Logger.Debug("Initializing table", zap.String("table", table))

			query := fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %[1]s (
					id BIGSERIAL PRIMARY KEY,
					ts TIMESTAMP WITH TIME ZONE NOT NULL,
					collection TEXT NOT NULL,
					asset TEXT NOT NULL DEFAULT '',
					tx_hash TEXT NOT NULL DEFAULT '',
					%[2]s
				);

				CREATE INDEX IF NOT EXISTS idx_%[1]s_collection_ts ON %[1]s(collection, ts);
				CREATE INDEX IF NOT EXISTS idx_%[1]s_ts ON %[1]s(ts);
			`, table, op.columns)

			if _, err := tx.Exec(ctx, query); err != nil {
				return fmt.Errorf("init %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.Logger.Info("Market database initialized",
		zap.String("database", db.DatabaseName()),
		zap.Duration("duration", time.Since(initStart)))
	return nil
}
