package warmer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/cache"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/backend"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/logging"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
)

// DefaultWindows are refreshed for every chart on each run.
var DefaultWindows = []timeseries.Window{timeseries.Window24h, timeseries.Window7d, timeseries.Window30d}

// App refreshes the cached charts of the busiest collections every Cron tick.
type App struct {
	Store db.MarketStore
	Cache cache.Cache

	Leaderboard Leaderboard
	Refresher   Refresher
	Catalog     *charts.Catalog

	// Pool runs refresh tasks. It must not be the pool the chart service uses for anchor lookups.
	Pool pond.Pool
	// AnchorPool is owned by the chart service and stopped on shutdown.
	AnchorPool pond.Pool

	// Cron is the scheduler that triggers warm runs at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	TopN       int
	Windows    []timeseries.Window
	RunTimeout time.Duration

	// Status tracks the last outcome per task key.
	Status *xsync.Map[string, TaskStatus]

	ready   atomic.Bool
	running atomic.Bool
	now     func() time.Time

	Logger *zap.Logger
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New("warmer")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := backend.Open(ctx, logger, "warmer")
	if err != nil {
		logger.Fatal("Unable to initialize market database", zap.Error(err))
	}

	responseCache, err := cache.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize response cache", zap.Error(err))
	}
	if _, shared := responseCache.(*cache.Redis); !shared {
		logger.Warn("Cache backend is not shared with the query service, warm runs only fill this process's cache",
			zap.String("backend", utils.Env("CACHE_BACKEND", cache.BackendMemory)))
	}

	anchorPool := pond.NewPool(utils.EnvInt("ANCHOR_WORKERS", 8))
	catalog := charts.DefaultCatalog()

	app := &App{
		Store:       store,
		Cache:       responseCache,
		Leaderboard: store,
		Refresher:   charts.NewService(logger, catalog, store, responseCache, anchorPool),
		Catalog:     catalog,
		Pool:        pond.NewPool(utils.EnvInt("WARMER_WORKERS", 4)),
		AnchorPool:  anchorPool,
		CronSpec:    utils.Env("WARMER_CRON", "0 */15 * * * *"),
		TopN:        utils.EnvInt("WARMER_TOP_COLLECTIONS", 20),
		Windows:     parseWindows(utils.Env("WARMER_WINDOWS", ""), logger),
		RunTimeout:  utils.EnvDuration("WARMER_RUN_TIMEOUT", 10*time.Minute),
		Status:      xsync.NewMap[string, TaskStatus](),
		Logger:      logger,
	}

	if err := app.SetupScheduler(ctx, app.CronSpec); err != nil {
		return nil, err
	}

	return app, nil
}

// parseWindows reads a comma separated window list, falling back to DefaultWindows.
func parseWindows(raw string, logger *zap.Logger) []timeseries.Window {
	var out []timeseries.Window
	for _, token := range utils.Dedup(strings.Split(raw, ",")) {
		w, err := timeseries.ParseWindow(token)
		if err != nil {
			logger.Warn("ignoring unknown warmer window", zap.String("window", token))
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return append([]timeseries.Window(nil), DefaultWindows...)
	}
	return out
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")
	a.Server = &http.Server{Addr: addr, Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second}
}

// Router serves the probes and the last task outcomes.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.Ready() {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")
	r.Handle("/status", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		out := make(map[string]TaskStatus, a.Status.Size())
		a.Status.Range(func(key string, st TaskStatus) bool {
			out[key] = st
			return true
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})).Methods("GET")

	return r
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, cronSpec string) error {
	logger := cronLogger{a.Logger.Sugar()}
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, a.RunTimeout)
		defer cancel()
		if _, err := a.Warm(rctx); err != nil {
			a.Logger.Warn("[warmer] run failed", zap.Error(err))
		}
	})
	return err
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[warmer] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Tasks expands the collections into one task per chart and window.
func (a *App) Tasks(collections []string) []Task {
	var tasks []Task
	for _, w := range a.Windows {
		for _, collection := range collections {
			for _, def := range a.Catalog.ByScope(charts.ScopeCollection) {
				tasks = append(tasks, Task{Chart: def.Name, Collection: collection, Window: w.String()})
			}
		}
		for _, def := range a.Catalog.ByScope(charts.ScopeMarket) {
			tasks = append(tasks, Task{Chart: def.Name, Window: w.String()})
		}
	}
	return tasks
}

// Warm refreshes every chart of the top collections and every market chart.
// Task failures are recorded and logged; only the leaderboard lookup fails the run.
func (a *App) Warm(ctx context.Context) (RunStats, error) {
	if !a.running.CompareAndSwap(false, true) {
		return RunStats{}, errors.New("warm run already in progress")
	}
	defer a.running.Store(false)

	start := a.clock()
	top, err := a.Leaderboard.TopCollections(ctx, start.Add(-24*time.Hour), a.TopN)
	if err != nil {
		return RunStats{}, err
	}

	collections := make([]string, 0, len(top))
	for _, c := range top {
		collections = append(collections, c.Collection)
	}
	tasks := a.Tasks(collections)

	var failed atomic.Int64
	group := a.Pool.NewGroup()
	for _, task := range tasks {
		group.Submit(func() {
			taskStart := a.clock()
			_, err := a.Refresher.Refresh(ctx, charts.Request{
				Chart:      task.Chart,
				Collection: task.Collection,
				Window:     timeseries.Window(task.Window),
			})
			status := TaskStatus{LastRun: taskStart, Duration: a.clock().Sub(taskStart)}
			if err != nil {
				failed.Add(1)
				status.Error = err.Error()
				a.Logger.Warn("[warmer] refresh failed",
					zap.String("task", task.Key()),
					zap.Error(err))
			}
			a.Status.Store(task.Key(), status)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		a.Logger.Warn("[warmer] task group error", zap.Error(err))
	}

	stats := RunStats{
		Collections: len(collections),
		Tasks:       len(tasks),
		Failed:      int(failed.Load()),
		Duration:    a.clock().Sub(start),
	}
	a.ready.Store(true)
	a.Logger.Info("[warmer] run complete",
		zap.Int("collections", stats.Collections),
		zap.Int("tasks", stats.Tasks),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// WarmOnce is a convenience wrapper for Warm.
func (a *App) WarmOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, a.RunTimeout)
	defer cancel()
	if _, err := a.Warm(rctx); err != nil {
		a.Logger.Warn("[warmer] initial run failed", zap.Error(err))
	}
}

// Ready reports whether at least one run has completed.
func (a *App) Ready() bool { return a.ready.Load() }

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[warmer] shutting down…")
	a.StopCron()
	a.Pool.StopAndWait()
	if a.AnchorPool != nil {
		a.AnchorPool.StopAndWait()
	}
	if err := a.Cache.Close(); err != nil {
		a.Logger.Error("Failed to close cache", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
