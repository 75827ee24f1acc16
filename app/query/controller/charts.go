package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// ChartInfo describes a chart in the /charts listing.
type ChartInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Scope        string   `json:"scope"`
	Metrics      []string `json:"metrics"`
	CarryForward []string `json:"carryForward,omitempty"`
	EmptyPolicy  string   `json:"emptyPolicy"`
	TTLSeconds   int64    `json:"ttlSeconds"`
}

func (c *Controller) HandleChartsList(w http.ResponseWriter, _ *http.Request) {
	defs := c.App.Charts.Catalog().List()
	out := make([]ChartInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, ChartInfo{
			Name:         d.Name,
			Description:  d.Description,
			Scope:        string(d.Scope),
			Metrics:      d.MetricNames(),
			CarryForward: d.CarryForward,
			EmptyPolicy:  d.Empty.String(),
			TTLSeconds:   int64(d.TTL / time.Second),
		})
	}
	writeData(w, out)
}

func (c *Controller) HandleCollectionChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c.renderChart(w, r, charts.Request{
		Chart:      vars["chart"],
		Collection: vars["slug"],
		Window:     c.parseWindow(r),
	})
}

func (c *Controller) HandleMarketChart(w http.ResponseWriter, r *http.Request) {
	c.renderChart(w, r, charts.Request{
		Chart:  mux.Vars(r)["chart"],
		Window: c.parseWindow(r),
	})
}

func (c *Controller) renderChart(w http.ResponseWriter, r *http.Request, req charts.Request) {
	ctx, cancel := c.requestContext(r)
	defer cancel()

	res, err := c.App.Charts.Render(ctx, req)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	cacheStatus := "MISS"
	if res.Cached {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("X-Granularity", res.Granularity.String())
	writeData(w, res.Payload)
}

func (c *Controller) HandleTopCollections(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	window := timeseries.Window24h
	if r.URL.Query().Get("window") != "" {
		window = c.parseWindow(r)
	}
	since, ok := window.Start(time.Now())
	if !ok {
		c.fail(w, r, errUnboundedTopWindow)
		return
	}

	ctx, cancel := c.requestContext(r)
	defer cancel()

	top, err := c.App.Store.TopCollections(ctx, since, limit)
	if err != nil {
		c.fail(w, r, &timeseries.DataSourceError{Source: "sales", Err: err})
		return
	}
	if top == nil {
		top = []db.CollectionVolume{}
	}
	writeData(w, top)
}

func (c *Controller) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if c.App.QueryTimeout > 0 {
		return context.WithTimeout(r.Context(), c.App.QueryTimeout)
	}
	return context.WithCancel(r.Context())
}

func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.App.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", r.Header.Get(requestIDHeader)),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		c.App.Logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("requestId", r.Header.Get(requestIDHeader)),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, status, msg)
}
