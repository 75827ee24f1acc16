package warmer

import (
	"context"
	"time"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/charts"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
)

// Refresher recomputes a chart and overwrites its cache entry.
type Refresher interface {
	Refresh(ctx context.Context, req charts.Request) (*charts.Result, error)
}

// Leaderboard ranks collections by recent sales volume.
type Leaderboard interface {
	TopCollections(ctx context.Context, since time.Time, limit int) ([]db.CollectionVolume, error)
}

// Task is one chart rendering refreshed by a run.
type Task struct {
	Chart      string
	Collection string
	Window     string
}

// Key identifies the task in the status map.
func (t Task) Key() string {
	if t.Collection == "" {
		return t.Chart + "@" + t.Window
	}
	return t.Chart + ":" + t.Collection + "@" + t.Window
}

// TaskStatus is the outcome of the last refresh of a task.
type TaskStatus struct {
	LastRun  time.Time     `json:"lastRun"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunStats summarises one warm run.
type RunStats struct {
	Collections int
	Tasks       int
	Failed      int
	Duration    time.Duration
}
