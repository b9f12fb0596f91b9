package services

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
)

// Today returns the current calendar date (see model.DateOf).
type Today func() time.Time

// SystemToday reads the wall clock in loc. A nil loc means time.Local.
func SystemToday(loc *time.Location) Today {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time {
		return model.DateOf(time.Now().In(loc))
	}
}

// FixedToday always answers day; used by tests and backfills.
func FixedToday(day time.Time) Today {
	d := model.DateOf(day)
	return func() time.Time { return d }
}
