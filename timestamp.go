package reactor

import "time"

// Timestamp is the narrow collaborator spec.md keeps out of the core:
// a source of "when did this happen" values handed to read callbacks
// and used to stamp poll returns. The source is the system clock, read
// by Now; there is no hook for substituting another clock.
type Timestamp struct {
	t time.Time
}

// Now returns the current Timestamp from the system clock.
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// Time returns the underlying time.Time.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether the timestamp has never been set.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// String formats the timestamp the way log lines want it.
func (ts Timestamp) String() string {
	return ts.t.Format("2006-01-02 15:04:05.000000")
}
