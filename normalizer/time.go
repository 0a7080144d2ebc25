// Package normalizer holds ready-made goserde normalizers.
package normalizer

import (
	"time"

	"github.com/cockroachdb/errors"

	goserde "github.com/reoring/goserde"
)

// TimeClass is the class name the reflect resolver gives time.Time.
const TimeClass = "time.Time"

// RFC3339 converts time.Time values to RFC3339 strings and back. Register it
// for goserde.Object(TimeClass) or for any type whose values are time.Time.
type RFC3339 struct{}

func (RFC3339) NormalizedType() goserde.Type { return goserde.String() }

// Normalize formats t in UTC with RFC3339Nano; trailing zeros are trimmed.
func (RFC3339) Normalize(v any, _ goserde.HookContext) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if t != nil {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
	}
	return nil, errors.Newf("normalizer: expected time.Time, got %T", v)
}

// Denormalize parses RFC3339Nano, falling back to RFC3339.
func (RFC3339) Denormalize(v any, _ goserde.HookContext) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.Newf("normalizer: expected string, got %T", v)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return nil, errors.Wrap(err, "normalizer: invalid RFC3339 time")
	}
	return t, nil
}
