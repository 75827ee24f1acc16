package charts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// Scope tells whether a chart is computed per collection or over the whole market.
type Scope string

const (
	ScopeCollection Scope = "collection"
	ScopeMarket     Scope = "market"
)

// Definition describes how a chart is assembled from the timeseries pipeline.
type Definition struct {
	Name        string
	Description string
	Scope       Scope
	// Source is aggregated into buckets.
	Source sources.Source
	// AnchorSources are consulted for the earliest event of unbounded windows. Defaults to Source.
	AnchorSources []sources.Source
	Metrics       []db.Metric
	Defaults      timeseries.Defaults
	// CarryForward lists metrics whose last observed value fills later empty buckets.
	CarryForward []string
	Empty        timeseries.EmptyPolicy
	TTL          time.Duration
}

func (d Definition) anchorSources() []sources.Source {
	if len(d.AnchorSources) == 0 {
		return []sources.Source{d.Source}
	}
	return d.AnchorSources
}

// MetricNames returns the output columns in declaration order.
func (d Definition) MetricNames() []string {
	names := make([]string, len(d.Metrics))
	for i, m := range d.Metrics {
		names[i] = m.Name
	}
	return names
}

// Validate checks the definition against the source registry.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("chart name is required")
	}
	if d.Scope != ScopeCollection && d.Scope != ScopeMarket {
		return fmt.Errorf("chart %s: unknown scope %q", d.Name, d.Scope)
	}
	if d.TTL <= 0 {
		return fmt.Errorf("chart %s: ttl must be positive", d.Name)
	}
	for _, s := range append([]sources.Source{d.Source}, d.AnchorSources...) {
		if !s.IsValid() {
			return fmt.Errorf("chart %s: unknown source %q", d.Name, s)
		}
	}
	q := db.BucketQuery{Source: d.Source, Granularity: timeseries.Daily, Metrics: d.Metrics}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("chart %s: %w", d.Name, err)
	}
	names := d.MetricNames()
	for _, m := range d.CarryForward {
		if !slices.Contains(names, m) {
			return fmt.Errorf("chart %s: carry-forward metric %q is not produced", d.Name, m)
		}
	}
	for m := range d.Defaults {
		if !slices.Contains(names, m) {
			return fmt.Errorf("chart %s: default for unknown metric %q", d.Name, m)
		}
	}
	for _, m := range names {
		if _, ok := d.Defaults[m]; !ok {
			return fmt.Errorf("chart %s: metric %q has no default", d.Name, m)
		}
	}
	return nil
}

// Catalog is the registry of chart definitions.
type Catalog struct {
	defs *xsync.Map[string, Definition]
}

func NewCatalog() *Catalog {
	return &Catalog{defs: xsync.NewMap[string, Definition]()}
}

// Register validates and adds a definition. Names are unique.
func (c *Catalog) Register(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, loaded := c.defs.LoadOrStore(d.Name, d); loaded {
		return fmt.Errorf("chart %s already registered", d.Name)
	}
	return nil
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	return c.defs.Load(name)
}

// List returns every definition sorted by scope then name.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, c.defs.Size())
	c.defs.Range(func(_ string, d Definition) bool {
		out = append(out, d)
		return true
	})
	slices.SortFunc(out, func(a, b Definition) int {
		if a.Scope != b.Scope {
			return strings.Compare(string(a.Scope), string(b.Scope))
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// ByScope returns the definitions of one scope, sorted by name.
func (c *Catalog) ByScope(scope Scope) []Definition {
	var out []Definition
	for _, d := range c.List() {
		if d.Scope == scope {
			out = append(out, d)
		}
	}
	return out
}

// DefaultDefinitions is the chart set served by the API.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:        "sales",
			Description: "Number of sales and traded volume",
			Scope:       ScopeCollection,
			Source:      sources.Sales,
			Metrics: []db.Metric{
				{Name: "sales", Func: db.Count},
				{Name: "volume", Func: db.Sum, Field: "price"},
			},
			Defaults: timeseries.Defaults{"sales": 0, "volume": 0},
			TTL:      3 * time.Hour,
		},
		{
			Name:         "floor-price",
			Description:  "Lowest sale price per bucket",
			Scope:        ScopeCollection,
			Source:       sources.Sales,
			Metrics:      []db.Metric{{Name: "floorPrice", Func: db.Min, Field: "price"}},
			Defaults:     timeseries.Defaults{"floorPrice": 0},
			CarryForward: []string{"floorPrice"},
			TTL:          6 * time.Hour,
		},
		{
			Name:         "average-price",
			Description:  "Average sale price per bucket",
			Scope:        ScopeCollection,
			Source:       sources.Sales,
			Metrics:      []db.Metric{{Name: "averagePrice", Func: db.Avg, Field: "price"}},
			Defaults:     timeseries.Defaults{"averagePrice": 0},
			CarryForward: []string{"averagePrice"},
			TTL:          6 * time.Hour,
		},
		{
			Name:        "transfers",
			Description: "Number of on-chain transfers",
			Scope:       ScopeCollection,
			Source:      sources.Transfers,
			Metrics:     []db.Metric{{Name: "transfers", Func: db.Count}},
			Defaults:    timeseries.Defaults{"transfers": 0},
			TTL:         3 * time.Hour,
		},
		{
			Name:        "holders-activity",
			Description: "Distinct receiving wallets",
			Scope:       ScopeCollection,
			Source:      sources.Transfers,
			Metrics:     []db.Metric{{Name: "activeWallets", Func: db.Uniq, Field: "to_address"}},
			Defaults:    timeseries.Defaults{"activeWallets": 0},
			Empty:       timeseries.EmptyNone,
			TTL:         12 * time.Hour,
		},
		{
			Name:        "listings",
			Description: "New listings and the lowest asking price",
			Scope:       ScopeCollection,
			Source:      sources.Listings,
			Metrics: []db.Metric{
				{Name: "listings", Func: db.Count},
				{Name: "listedFloor", Func: db.Min, Field: "price"},
			},
			Defaults:     timeseries.Defaults{"listings": 0, "listedFloor": 0},
			CarryForward: []string{"listedFloor"},
			TTL:          3 * time.Hour,
		},
		{
			Name:          "market-volume",
			Description:   "Marketplace-wide traded volume and sales",
			Scope:         ScopeMarket,
			Source:        sources.Sales,
			AnchorSources: []sources.Source{sources.Sales, sources.Transfers},
			Metrics: []db.Metric{
				{Name: "volume", Func: db.Sum, Field: "price"},
				{Name: "sales", Func: db.Count},
			},
			Defaults: timeseries.Defaults{"volume": 0, "sales": 0},
			TTL:      24 * time.Hour,
		},
		{
			Name:          "market-buyers",
			Description:   "Distinct buyers across all collections",
			Scope:         ScopeMarket,
			Source:        sources.Sales,
			AnchorSources: []sources.Source{sources.Sales, sources.Listings},
			Metrics:       []db.Metric{{Name: "buyers", Func: db.Uniq, Field: "buyer"}},
			Defaults:      timeseries.Defaults{"buyers": 0},
			Empty:         timeseries.EmptyNone,
			TTL:           15 * 24 * time.Hour,
		},
	}
}

// DefaultCatalog registers DefaultDefinitions.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, d := range DefaultDefinitions() {
		if err := c.Register(d); err != nil {
			panic(err)
		}
	}
	return c
}
