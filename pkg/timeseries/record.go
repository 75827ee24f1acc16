package timeseries

import (
	"encoding/json"
	"time"
)

// TimestampField is the JSON name of the bucket start on every serialized record.
const TimestampField = "bucketTimestamp"

// Record is one bucket of a series. A nil metric value is an observed null.
type Record struct {
	Key    BucketKey
	Fields map[string]*float64
}

// Defaults holds the value used for each metric in buckets without events.
type Defaults map[string]float64

// Value returns the metric value and whether it is present and non-null.
func (r Record) Value(metric string) (float64, bool) {
	v, ok := r.Fields[metric]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

func (r Record) clone() Record {
	fields := make(map[string]*float64, len(r.Fields))
	for name, v := range r.Fields {
		if v == nil {
			fields[name] = nil
			continue
		}
		value := *v
		fields[name] = &value
	}
	return Record{Key: r.Key, Fields: fields}
}

// Float returns a pointer to v, for building records by hand.
func Float(v float64) *float64 {
	return &v
}

// MarshalJSON flattens the record into {"bucketTimestamp": ..., <metric>: ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for name, v := range r.Fields {
		if v == nil {
			out[name] = nil
			continue
		}
		out[name] = *v
	}
	out[TimestampField] = InstantOf(r.Key).Format(time.RFC3339)
	return json.Marshal(out)
}
