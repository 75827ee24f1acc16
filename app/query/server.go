package query

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/app/query/controller"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/app/query/types"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
)

const defaultQueryTimeout = 30 * time.Second

// NewServer builds the HTTP server for the app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3001")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(controller.WithRequestID(router)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
