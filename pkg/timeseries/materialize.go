package timeseries

import (
	"time"

	"go.uber.org/zap"
)

// EmptyPolicy decides what an empty sparse series materializes to.
type EmptyPolicy uint8

const (
	// EmptySinglePoint emits one default record at the anchor bucket.
	EmptySinglePoint EmptyPolicy = iota
	// EmptyNone emits no records.
	EmptyNone
)

func (p EmptyPolicy) String() string {
	if p == EmptyNone {
		return "none"
	}
	return "single_point"
}

// Options configure a single materialization.
type Options struct {
	// CarryForward lists metrics whose gap value is the last observed non-null value
	// instead of the default.
	CarryForward []string
	Empty        EmptyPolicy
}

// Materializer turns sparse ascending bucket aggregates into a dense series.
type Materializer struct {
	logger *zap.Logger
}

func NewMaterializer(logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{logger: logger}
}

// Materialize returns one record per bucket from the anchor bucket through the last
// sparse bucket inclusive. Observed records are emitted as-is, including null metrics.
// Missing buckets get the defaults, overridden by carried values for CarryForward metrics.
// Records at or before an already emitted bucket are dropped with a warning; for an
// exact duplicate key the first occurrence wins.
func (m *Materializer) Materialize(anchor time.Time, sparse []Record, g Granularity, defaults Defaults, opts Options) []Record {
	cursor := KeyOf(anchor, g)

	if len(sparse) == 0 {
		if opts.Empty == EmptyNone {
			return []Record{}
		}
		return []Record{fill(cursor, defaults)}
	}

	current := make(Defaults, len(defaults))
	for name, v := range defaults {
		current[name] = v
	}

	out := make([]Record, 0, len(sparse))
	var last BucketKey
	emitted := false

	for _, r := range sparse {
		key := KeyOf(InstantOf(r.Key), g)

		if emitted && key.Equal(last) {
			m.logger.Warn("duplicate bucket key, keeping first record",
				zap.String("bucket", key.String()),
				zap.Stringer("granularity", g))
			continue
		}
		if key.Before(cursor) {
			m.logger.Warn("bucket out of order or before anchor, dropping record",
				zap.String("bucket", key.String()),
				zap.String("cursor", cursor.String()),
				zap.Stringer("granularity", g))
			continue
		}

		for cursor.Before(key) {
			out = append(out, fill(cursor, current))
			cursor = Successor(cursor, g)
		}

		rec := r.clone()
		rec.Key = key
		out = append(out, rec)
		last, emitted = key, true
		cursor = Successor(key, g)

		for _, name := range opts.CarryForward {
			if v, ok := r.Value(name); ok {
				current[name] = v
			}
		}
	}

	return out
}

func fill(key BucketKey, values Defaults) Record {
	fields := make(map[string]*float64, len(values))
	for name, v := range values {
		fields[name] = Float(v)
	}
	return Record{Key: key, Fields: fields}
}
