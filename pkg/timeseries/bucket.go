package timeseries

import (
	"fmt"
	"time"
)

// BucketKey identifies a bucket by its calendar components. Components finer than the
// granularity are zero.
type BucketKey struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// KeyOf truncates t to the start of its bucket. Stride is applied by floor division on the
// unit component, so with a 2 hour stride 13:xx and 12:xx share bucket 12.
func KeyOf(t time.Time, g Granularity) BucketKey {
	g = g.normalized()
	t = t.UTC()
	k := BucketKey{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
	switch g.Unit {
	case UnitSecond:
		k.Hour, k.Minute, k.Second = t.Hour(), t.Minute(), floorTo(t.Second(), g.Stride)
	case UnitMinute:
		k.Hour, k.Minute = t.Hour(), floorTo(t.Minute(), g.Stride)
	case UnitHour:
		k.Hour = floorTo(t.Hour(), g.Stride)
	}
	return k
}

// InstantOf returns the UTC start instant of the bucket.
func InstantOf(k BucketKey) time.Time {
	return time.Date(k.Year, time.Month(k.Month), k.Day, k.Hour, k.Minute, k.Second, 0, time.UTC)
}

// Successor returns the key of the bucket that follows k.
func Successor(k BucketKey, g Granularity) BucketKey {
	return KeyOf(InstantOf(k).Add(g.Step()), g)
}

// Predecessor returns the key of the bucket that precedes k.
func Predecessor(k BucketKey, g Granularity) BucketKey {
	return KeyOf(InstantOf(k).Add(-g.Step()), g)
}

func floorTo(v, stride int) int {
	return v - v%stride
}

// Compare orders keys lexicographically from year down to second.
func (k BucketKey) Compare(other BucketKey) int {
	a := [...]int{k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second}
	b := [...]int{other.Year, other.Month, other.Day, other.Hour, other.Minute, other.Second}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (k BucketKey) Equal(other BucketKey) bool {
	return k == other
}

func (k BucketKey) Before(other BucketKey) bool {
	return k.Compare(other) < 0
}

// Time is shorthand for InstantOf(k).
func (k BucketKey) Time() time.Time {
	return InstantOf(k)
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second)
}
