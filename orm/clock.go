package orm

import (
	"context"
	"time"
)

// Clock supplies the time written to an entity's Meta.Timestamp column
// (date_added in the catalog).
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type clockKey struct{}

// WithClock makes Repo.Add stamp timestamp columns from c instead of the
// wall clock. Values the caller passes for the column are kept.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

func now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

// stamp fills m's timestamp column in v when it is absent. The time is cut
// to microseconds, the precision of a DATETIME(6) column and of
// timestampLayout, so a stored stamp compares equal to its own rendering.
func stamp(ctx context.Context, m *Meta, v Values) {
	if m.Timestamp == "" {
		return
	}
	if _, ok := v[m.Timestamp]; ok {
		return
	}
	v[m.Timestamp] = now(ctx).Truncate(time.Microsecond)
}
