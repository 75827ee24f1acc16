package controller

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var (
	errInvalidLimit       = &parseError{msg: "invalid limit"}
	errUnboundedTopWindow = &parseError{msg: "top collections need a bounded window"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// parseWindow reads ?window=. Unknown tokens are logged and fall back to the default window.
func (c *Controller) parseWindow(r *http.Request) timeseries.Window {
	raw := r.URL.Query().Get("window")
	w, err := timeseries.ParseWindow(raw)
	if errors.Is(err, timeseries.ErrInvalidWindowToken) {
		c.App.Logger.Warn("unknown window token, using default",
			zap.String("window", raw),
			zap.String("default", w.String()),
			zap.String("path", r.URL.Path))
	}
	return w
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return min(n, maxLimit), nil
}
