package timeseries

import (
	"fmt"
	"time"
)

// Unit is the calendar unit a bucket is aligned to.
type Unit uint8

const (
	UnitSecond Unit = iota + 1
	UnitMinute
	UnitHour
	UnitDay
)

func (u Unit) String() string {
	switch u {
	case UnitSecond:
		return "second"
	case UnitMinute:
		return "minute"
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	default:
		return "unknown"
	}
}

// Duration is the length of one unit.
func (u Unit) Duration() time.Duration {
	switch u {
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Field is a calendar component of a bucket key.
type Field uint8

const (
	FieldYear Field = iota + 1
	FieldMonth
	FieldDay
	FieldHour
	FieldMinute
	FieldSecond
)

func (f Field) String() string {
	return [...]string{"", "year", "month", "day", "hour", "minute", "second"}[f]
}

var allFields = []Field{FieldYear, FieldMonth, FieldDay, FieldHour, FieldMinute, FieldSecond}

// Fields returns the key components that are present at this unit, coarsest first.
func (u Unit) Fields() []Field {
	n := 3
	switch u {
	case UnitSecond:
		n = 6
	case UnitMinute:
		n = 5
	case UnitHour:
		n = 4
	}
	out := make([]Field, n)
	copy(out, allFields[:n])
	return out
}

// Granularity is the bucket width for a window: Stride whole Units.
type Granularity struct {
	Unit   Unit
	Stride int
}

var (
	Daily = Granularity{Unit: UnitDay, Stride: 1}

	granularities = map[Window]Granularity{
		Window1m:  {Unit: UnitSecond, Stride: 1},
		Window5m:  {Unit: UnitSecond, Stride: 5},
		Window15m: {Unit: UnitSecond, Stride: 10},
		Window30m: {Unit: UnitSecond, Stride: 30},
		Window1h:  {Unit: UnitMinute, Stride: 1},
		Window6h:  {Unit: UnitMinute, Stride: 5},
		Window12h: {Unit: UnitMinute, Stride: 10},
		Window24h: {Unit: UnitHour, Stride: 1},
		Window7d:  {Unit: UnitHour, Stride: 2},
		Window30d: Daily,
		Window3mo: Daily,
		Window1y:  Daily,
	}
)

// GranularityFor resolves the bucket granularity of a window. Unknown windows get Daily.
func GranularityFor(w Window) Granularity {
	if g, ok := granularities[w]; ok {
		return g
	}
	return Daily
}

// Valid reports whether the unit is known and the stride evenly divides the parent unit.
func (g Granularity) Valid() bool {
	switch g.Unit {
	case UnitSecond, UnitMinute:
		return g.Stride > 0 && 60%g.Stride == 0
	case UnitHour:
		return g.Stride > 0 && 24%g.Stride == 0
	case UnitDay:
		return g.Stride == 1
	default:
		return false
	}
}

func (g Granularity) normalized() Granularity {
	if g.Unit < UnitSecond || g.Unit > UnitDay {
		g.Unit = UnitDay
	}
	if g.Stride < 1 {
		g.Stride = 1
	}
	if g.Unit == UnitDay {
		g.Stride = 1
	}
	return g
}

// Step is the distance between two consecutive bucket starts.
func (g Granularity) Step() time.Duration {
	g = g.normalized()
	return time.Duration(g.Stride) * g.Unit.Duration()
}

// Fields returns the key components included at this granularity.
func (g Granularity) Fields() []Field {
	return g.normalized().Unit.Fields()
}

// Finer reports whether g produces narrower buckets than other.
func (g Granularity) Finer(other Granularity) bool {
	return g.Step() < other.Step()
}

func (g Granularity) String() string {
	g = g.normalized()
	return fmt.Sprintf("%d%s", g.Stride, g.Unit)
}
