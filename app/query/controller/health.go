package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Store.Ping(ctx); err != nil {
		c.App.Logger.Warn("health: database ping failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	if rc, ok := c.App.Cache.(*cache.Redis); ok && rc.Client() != nil {
		if err := rc.Client().Health(ctx); err != nil {
			c.App.Logger.Warn("health: redis ping failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "cache connection error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
