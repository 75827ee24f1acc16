// Package backend opens the market event store selected by EVENTS_BACKEND.
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/market"
	pgmarket "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/postgres/market"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
)

const (
	ClickHouse = "clickhouse"
	Postgres   = "postgres"
)

// Name returns the configured backend, lower-cased.
func Name() string {
	return strings.ToLower(strings.TrimSpace(utils.Env("EVENTS_BACKEND", ClickHouse)))
}

// Open connects to the configured backend and initializes its tables.
// component selects the connection pool profile (query, warmer).
func Open(ctx context.Context, logger *zap.Logger, component string) (db.MarketStore, error) {
	name := Name()
	logger = logger.With(zap.String("backend", name))

	switch name {
	case ClickHouse:
		store, err := market.New(ctx, logger, component)
		if err != nil {
			return nil, fmt.Errorf("open clickhouse store: %w", err)
		}
		return store, nil
	case Postgres:
		store, err := pgmarket.New(ctx, logger, component)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown EVENTS_BACKEND %q (want %s or %s)", name, ClickHouse, Postgres)
	}
}
