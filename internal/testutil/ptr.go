// Package testutil holds small helpers shared by tests.
package testutil

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// Day returns midnight UTC of the given day offset from base.
func Day(base time.Time, offset int) time.Time {
	y, m, d := base.UTC().Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC)
}
