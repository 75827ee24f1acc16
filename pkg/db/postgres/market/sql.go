package market

import (
	"fmt"
	"strings"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

var parentUnit = map[timeseries.Unit]string{
	timeseries.UnitSecond: "minute",
	timeseries.UnitMinute: "hour",
	timeseries.UnitHour:   "day",
}

// bucketExpr bins ts inside its parent unit so strides restart at every minute, hour or day.
func bucketExpr(g timeseries.Granularity) string {
	ts := sources.TimestampField
	parent, ok := parentUnit[g.Unit]
	if !ok {
		return fmt.Sprintf("date_trunc('day', %s)", ts)
	}
	return fmt.Sprintf("date_bin(INTERVAL '%d %ss', %s, date_trunc('%s', %s))", g.Stride, g.Unit, ts, parent, ts)
}

func aggregateExpr(m marketdb.Metric) string {
	switch m.Func {
	case marketdb.Count:
		return "count(*)::float8"
	case marketdb.Uniq:
		return fmt.Sprintf("count(DISTINCT %s)::float8", m.Field)
	default:
		return fmt.Sprintf("%s(%s)::float8", m.Func, m.Field)
	}
}

// whereClause renders time bounds and equality filters with $n placeholders.
func whereClause(from, to time.Time, filters map[string]string) (string, []any) {
	conds := make([]string, 0, len(filters)+2)
	args := make([]any, 0, len(filters)+2)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !from.IsZero() {
		add(sources.TimestampField+" >= $%d", from.UTC())
	}
	if !to.IsZero() {
		add(sources.TimestampField+" < $%d", to.UTC())
	}
	for _, k := range sources.SortedKeys(filters) {
		add(k+" = $%d", filters[k])
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func minTimestampSQL(source sources.Source, filters map[string]string) (string, []any) {
	where, args := whereClause(time.Time{}, time.Time{}, filters)
	return fmt.Sprintf("SELECT min(%s) FROM %s%s", sources.TimestampField, source.TableName(), where), args
}

func bucketSQL(q marketdb.BucketQuery) (string, []any) {
	selects := make([]string, 0, len(q.Metrics)+1)
	selects = append(selects, bucketExpr(q.Granularity)+" AS bucket")
	for i, m := range q.Metrics {
		selects = append(selects, fmt.Sprintf("%s AS m%d", aggregateExpr(m), i))
	}

	where, args := whereClause(q.From, q.To, q.Filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s GROUP BY bucket ORDER BY bucket",
		strings.Join(selects, ", "), q.Source.TableName(), where)
	return query, args
}

func topCollectionsSQL() string {
	return fmt.Sprintf(`
		SELECT
			collection,
			coalesce(sum(price), 0)::float8 AS volume,
			count(*) AS sales
		FROM %s
		WHERE ts >= $1
		GROUP BY collection
		ORDER BY volume DESC, collection
		LIMIT $2
	`, sources.Sales.TableName())
}
