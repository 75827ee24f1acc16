package timeseries

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindowToken is returned alongside the fallback window when a token is not recognised.
	ErrInvalidWindowToken = errors.New("invalid window token")
	// ErrDataSourceUnavailable marks a failed earliest-timestamp lookup.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
)

// DataSourceError wraps the failure of a single source during anchor resolution.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("%s: source %q: %v", ErrDataSourceUnavailable, e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func (e *DataSourceError) Is(target error) bool {
	return target == ErrDataSourceUnavailable
}
