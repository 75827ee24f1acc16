package market

import (
	"fmt"
	"strings"
	"time"

	marketdb "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/db/sources"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/timeseries"
)

// bucketExpr floors ts to the bucket start. Strides are applied inside the parent unit so a
// 2 hour stride yields 00, 02, ... 22 every day.
func bucketExpr(g timeseries.Granularity) string {
	ts := sources.TimestampField
	switch g.Unit {
	case timeseries.UnitSecond:
		return fmt.Sprintf("addSeconds(toStartOfMinute(%[1]s), intDiv(toSecond(%[1]s), %[2]d) * %[2]d)", ts, g.Stride)
	case timeseries.UnitMinute:
		return fmt.Sprintf("addMinutes(toStartOfHour(%[1]s), intDiv(toMinute(%[1]s), %[2]d) * %[2]d)", ts, g.Stride)
	case timeseries.UnitHour:
		return fmt.Sprintf("addHours(toStartOfDay(%[1]s), intDiv(toHour(%[1]s), %[2]d) * %[2]d)", ts, g.Stride)
	default:
		return fmt.Sprintf("toStartOfDay(%s)", ts)
	}
}

// aggregateExpr renders a metric as Nullable(Float64) so every metric scans into *float64.
func aggregateExpr(m marketdb.Metric) string {
	var expr string
	switch m.Func {
	case marketdb.Count:
		expr = "count()"
	case marketdb.Uniq:
		expr = fmt.Sprintf("uniqExact(%s)", m.Field)
	default:
		expr = fmt.Sprintf("%s(%s)", m.Func, m.Field)
	}
	return fmt.Sprintf("toNullable(toFloat64(%s))", expr)
}

// whereClause renders time bounds and equality filters with positional placeholders.
func whereClause(from, to time.Time, filters map[string]string) (string, []any) {
	conds := make([]string, 0, len(filters)+2)
	args := make([]any, 0, len(filters)+2)
	if !from.IsZero() {
		conds = append(conds, sources.TimestampField+" >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, sources.TimestampField+" < ?")
		args = append(args, to.UTC())
	}
	for _, k := range sources.SortedKeys(filters) {
		conds = append(conds, k+" = ?")
		args = append(args, filters[k])
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// minTimestampSQL selects count() next to min(ts) because min over an empty DateTime set
// returns the epoch rather than NULL.
func minTimestampSQL(database string, source sources.Source, filters map[string]string) (string, []any) {
	where, args := whereClause(time.Time{}, time.Time{}, filters)
	query := fmt.Sprintf(`SELECT count() AS n, min(%s) AS first FROM "%s"."%s"%s`,
		sources.TimestampField, database, source.TableName(), where)
	return query, args
}

// bucketSQL aliases metrics positionally (m0, m1, ...) to stay clear of column names.
func bucketSQL(database string, q marketdb.BucketQuery) (string, []any) {
	selects := make([]string, 0, len(q.Metrics)+1)
	selects = append(selects, bucketExpr(q.Granularity)+" AS bucket")
	for i, m := range q.Metrics {
		selects = append(selects, fmt.Sprintf("%s AS m%d", aggregateExpr(m), i))
	}

	where, args := whereClause(q.From, q.To, q.Filters)
	query := fmt.Sprintf(`SELECT %s FROM "%s"."%s"%s GROUP BY bucket ORDER BY bucket`,
		strings.Join(selects, ", "), database, q.Source.TableName(), where)
	return query, args
}

func topCollectionsSQL(database string) string {
	return fmt.Sprintf(`
		SELECT
			collection,
			toFloat64(sum(ifNull(price, 0))) AS volume,
			count() AS sales
		FROM "%s"."%s"
		WHERE ts >= ?
		GROUP BY collection
		ORDER BY volume DESC, collection
		LIMIT ?
	`, database, sources.Sales.TableName())
}

func insertSQL(database string, source sources.Source) string {
	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s)`,
		database, source.TableName(), strings.Join(marketdb.InsertColumns(source), ", "))
}
