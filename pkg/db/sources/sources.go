// Package sources is the registry of market event collections the analytics queries read.
//
// Every table name and column that ends up in generated SQL comes from this package, so
// request input is only ever matched against the registry and never interpolated.
package sources

import (
	"fmt"
	"slices"
	"strings"
)

// Source is an event collection (sales, transfers, listings).
type Source string

const (
	// Sales are settled marketplace purchases. price is in ADA.
	Sales Source = "sales"
	// Transfers are on-chain asset moves between addresses, including mints.
	Transfers Source = "transfers"
	// Listings are marketplace list events. price is the asking price in ADA.
	Listings Source = "listings"
)

// TimestampField is the event time column shared by every source.
const TimestampField = "ts"

// Column describes one column of an event table.
type Column struct {
	Name string
	// Numeric columns can be summed and averaged.
	Numeric bool
	// Filterable columns may appear in equality predicates.
	Filterable bool
}

var allSources = []Source{Sales, Transfers, Listings}

var columns = map[Source][]Column{
	Sales: {
		{Name: "collection", Filterable: true},
		{Name: "asset", Filterable: true},
		{Name: "tx_hash"},
		{Name: "price", Numeric: true},
		{Name: "buyer", Filterable: true},
		{Name: "seller", Filterable: true},
		{Name: "marketplace", Filterable: true},
	},
	Transfers: {
		{Name: "collection", Filterable: true},
		{Name: "asset", Filterable: true},
		{Name: "tx_hash"},
		{Name: "from_address", Filterable: true},
		{Name: "to_address", Filterable: true},
		{Name: "quantity", Numeric: true},
	},
	Listings: {
		{Name: "collection", Filterable: true},
		{Name: "asset", Filterable: true},
		{Name: "tx_hash"},
		{Name: "price", Numeric: true},
		{Name: "seller", Filterable: true},
		{Name: "marketplace", Filterable: true},
	},
}

var sourceSet map[Source]bool

func init() {
	sourceSet = make(map[Source]bool, len(allSources))
	for _, s := range allSources {
		if s == "" || strings.ContainsAny(string(s), " .\"`") {
			panic(fmt.Sprintf("sources: invalid source name %q", s))
		}
		if _, ok := columns[s]; !ok {
			panic(fmt.Sprintf("sources: source %q has no columns", s))
		}
		sourceSet[s] = true
	}
}

func (s Source) String() string {
	return string(s)
}

// TableName is the physical table holding the source's events.
func (s Source) TableName() string {
	return string(s) + "_events"
}

// TimestampField is the event time column.
func (s Source) TimestampField() string {
	return TimestampField
}

// Columns returns the source's non-timestamp columns.
func (s Source) Columns() []Column {
	return slices.Clone(columns[s])
}

// Column looks up a column by name. The timestamp column is reported as not found.
func (s Source) Column(name string) (Column, bool) {
	for _, c := range columns[s] {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsValid reports whether s is registered.
func (s Source) IsValid() bool {
	return sourceSet[s]
}

// All returns every registered source.
func All() []Source {
	return slices.Clone(allSources)
}

// FromString parses a source name.
func FromString(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown source %q (valid: %s)", name, strings.Join(names(), ", "))
	}
	return s, nil
}

// ValidateFilters checks that every key is a filterable column and that the timestamp column
// is the one registered for the source.
func (s Source) ValidateFilters(timestampField string, filters map[string]string) error {
	if !s.IsValid() {
		return fmt.Errorf("unknown source %q", s)
	}
	if timestampField != "" && timestampField != TimestampField {
		return fmt.Errorf("source %s has no timestamp column %q", s, timestampField)
	}
	for name := range filters {
		col, ok := s.Column(name)
		if !ok || !col.Filterable {
			return fmt.Errorf("source %s: column %q is not filterable", s, name)
		}
	}
	return nil
}

// SortedKeys returns filter keys in a stable order for SQL generation.
func SortedKeys(filters map[string]string) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func names() []string {
	out := make([]string, len(allSources))
	for i, s := range allSources {
		out[i] = string(s)
	}
	return out
}
