package db

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// ErrInvalidQuery is returned before any SQL is sent when a query references unknown
// sources, columns or aggregations.
var ErrInvalidQuery = errors.New("invalid query")

// Aggregation is the SQL aggregate applied to a metric.
type Aggregation string

const (
	Count Aggregation = "count"
	Sum   Aggregation = "sum"
	Min   Aggregation = "min"
	Max   Aggregation = "max"
	Avg   Aggregation = "avg"
	// Uniq counts distinct values of a column.
	Uniq Aggregation = "uniq"
)

// Metric is one aggregated output column of a bucket query.
type Metric struct {
	Name  string
	Func  Aggregation
	Field string
}

var metricName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,62}$`)

// Validate checks the metric against the source's column registry.
func (m Metric) Validate(source sources.Source) error {
	if !metricName.MatchString(m.Name) {
		return fmt.Errorf("%w: metric name %q", ErrInvalidQuery, m.Name)
	}
	switch m.Func {
	case Count:
		return nil
	case Sum, Min, Max, Avg:
		col, ok := source.Column(m.Field)
		if !ok || !col.Numeric {
			return fmt.Errorf("%w: %s(%s) needs a numeric column of %s", ErrInvalidQuery, m.Func, m.Field, source)
		}
		return nil
	case Uniq:
		if _, ok := source.Column(m.Field); !ok {
			return fmt.Errorf("%w: uniq(%s) on unknown column of %s", ErrInvalidQuery, m.Field, source)
		}
		return nil
	default:
		return fmt.Errorf("%w: aggregation %q", ErrInvalidQuery, m.Func)
	}
}

// BucketQuery asks for per-bucket aggregates of a source between From (inclusive) and
// To (exclusive, zero means open ended).
type BucketQuery struct {
	Source      sources.Source
	Granularity timeseries.Granularity
	From        time.Time
	To          time.Time
	Filters     map[string]string
	Metrics     []Metric
}

// Validate checks source, filters and metrics.
func (q BucketQuery) Validate() error {
	if err := q.Source.ValidateFilters(sources.TimestampField, q.Filters); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if !q.Granularity.Valid() {
		return fmt.Errorf("%w: granularity %+v", ErrInvalidQuery, q.Granularity)
	}
	if len(q.Metrics) == 0 {
		return fmt.Errorf("%w: no metrics", ErrInvalidQuery)
	}
	seen := make(map[string]bool, len(q.Metrics))
	for _, m := range q.Metrics {
		if err := m.Validate(q.Source); err != nil {
			return err
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: metric %q listed twice", ErrInvalidQuery, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// ResolveSource validates a SourceQuery coming from the anchor resolver.
func ResolveSource(q timeseries.SourceQuery) (sources.Source, error) {
	src, err := sources.FromString(q.Source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := src.ValidateFilters(q.TimestampField, q.Filters); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return src, nil
}

// Event is a market event row. Sources only read the columns they register.
type Event struct {
	Timestamp   time.Time
	Collection  string
	Asset       string
	TxHash      string
	Price       *float64 // nil when the marketplace did not report a price
	Quantity    float64
	Buyer       string
	Seller      string
	FromAddress string
	ToAddress   string
	Marketplace string
}

// Value returns the value for a registered column name.
func (e Event) Value(column string) any {
	switch column {
	case sources.TimestampField:
		return e.Timestamp.UTC()
	case "collection":
		return e.Collection
	case "asset":
		return e.Asset
	case "tx_hash":
		return e.TxHash
	case "price":
		return e.Price
	case "quantity":
		return e.Quantity
	case "buyer":
		return e.Buyer
	case "seller":
		return e.Seller
	case "from_address":
		return e.FromAddress
	case "to_address":
		return e.ToAddress
	case "marketplace":
		return e.Marketplace
	default:
		return nil
	}
}

// InsertColumns is the column order used when inserting into a source table.
func InsertColumns(source sources.Source) []string {
	cols := source.Columns()
	out := make([]string, 0, len(cols)+1)
	out = append(out, sources.TimestampField)
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

// Row lays out the event according to InsertColumns.
func (e Event) Row(source sources.Source) []any {
	cols := InsertColumns(source)
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = e.Value(c)
	}
	return row
}
