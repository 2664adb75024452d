package core

import (
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// hoursPerDay converts durations to fractional days.
const hoursPerDay = 24

// Epoch is the reference date that anchors all elapsed-day bounds.
// Case windows are expressed as fractional days since this date, so the
// statistical core never sees calendar dates.
type Epoch struct {
	at time.Time
}

// DefaultEpochDate is the reference date used when none is configured.
const DefaultEpochDate = "2019-12-01"

// NewEpoch creates an epoch anchored at the given time, normalized to UTC.
func NewEpoch(t time.Time) Epoch {
	return Epoch{at: t.UTC()}
}

// ParseEpoch parses a YYYY-MM-DD date into an epoch.
func ParseEpoch(s string) (Epoch, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Epoch{}, err
	}
	return NewEpoch(t), nil
}

// DefaultEpoch returns the default reference epoch.
func DefaultEpoch() Epoch {
	e, _ := ParseEpoch(DefaultEpochDate)
	return e
}

// Time returns the epoch's anchor time.
func (e Epoch) Time() time.Time {
	return e.at
}

// IsZero checks if the epoch is unset.
func (e Epoch) IsZero() bool {
	return e.at.IsZero()
}

// Days returns t as fractional days since the epoch.
func (e Epoch) Days(t time.Time) float64 {
	return t.Sub(e.at).Hours() / hoursPerDay
}

// Date converts fractional days since the epoch back to a time.
func (e Epoch) Date(days float64) time.Time {
	return e.at.Add(time.Duration(days * hoursPerDay * float64(time.Hour)))
}

// ShiftYears returns an epoch moved by the given number of calendar years.
// Used by the sensitivity analysis that re-anchors missing exposure bounds.
func (e Epoch) ShiftYears(years int) Epoch {
	return Epoch{at: e.at.AddDate(years, 0, 0)}
}

// String formats the epoch anchor as YYYY-MM-DD.
func (e Epoch) String() string {
	return e.at.Format("2006-01-02")
}
