package chaintime

import (
	"time"

	"github.com/disciplinator/disciplinator/internal/safemath"
)

// Seconds is a duration in whole seconds.
type Seconds int64

// Timestamp is a wall-clock instant in Unix seconds, as read from the host
// clock at the moment an operation is invoked.
type Timestamp int64

// FromTime converts a time.Time into a Timestamp, dropping sub-second precision.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.Unix())
}

// ToTime converts a Timestamp into a UTC time.Time.
func (t Timestamp) ToTime() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns t+d. It never wraps: an overflow yields ErrTimeOverflow.
func (t Timestamp) Add(d Seconds) (Timestamp, error) {
	if d < 0 {
		return 0, ErrNegativeDuration
	}
	v, ok := safemath.Add(int64(t), int64(d))
	if !ok {
		return 0, ErrTimeOverflow
	}
	return Timestamp(v), nil
}

// AddDays returns t plus the given number of whole days.
func (t Timestamp) AddDays(days uint32) (Timestamp, error) {
	d, ok := safemath.Mul(int64(days), int64(Day))
	if !ok {
		return 0, ErrTimeOverflow
	}
	return t.Add(Seconds(d))
}

// Sub returns t-u in seconds.
func (t Timestamp) Sub(u Timestamp) Seconds {
	return Seconds(t - u)
}

// HoursSince returns the number of whole hours elapsed from earlier to t,
// truncated toward zero.
func (t Timestamp) HoursSince(earlier Timestamp) int64 {
	return int64(t.Sub(earlier) / Hour)
}

// Before reports whether t is strictly before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t < u
}

// IsZero reports whether t is the zero Unix instant.
func (t Timestamp) IsZero() bool {
	return t == 0
}

func (t Timestamp) String() string {
	return t.ToTime().Format(time.RFC3339)
}
