// Package normalize converts between the internal zone-naive wall-clock
// representation of timestamps and absolute instants.
//
// Internal time entries store local wall-clock time with no zone attached.
// Crossing the provider boundary means reinterpreting that wall clock in
// the application's configured zone (export) or projecting an instant into
// that zone and stripping it again (import). Naive values are carried as
// time.Time in UTC purely as a container; the location on them is not
// meaningful.
package normalize

import "time"

// ToUTC reinterprets a zone-naive wall-clock timestamp in loc and returns
// the absolute instant in UTC.
func ToUTC(naive time.Time, loc *time.Location) time.Time {
	return time.Date(
		naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), naive.Nanosecond(),
		loc,
	).UTC()
}

// ToNaive projects an absolute instant into loc and strips the zone,
// yielding the local wall-clock value.
func ToNaive(instant time.Time, loc *time.Location) time.Time {
	t := instant.In(loc)
	return time.Date(
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.UTC,
	)
}
