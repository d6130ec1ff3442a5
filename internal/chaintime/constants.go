package chaintime

const (
	// Hour is the length of an hour in seconds.
	Hour Seconds = 3_600

	// Day is the length of a day in seconds. Challenge durations are expressed
	// in whole days.
	Day Seconds = 24 * Hour

	// Week is the cadence of reward epochs.
	Week Seconds = 7 * Day

	// GracePeriodExtension is how far a single grace period pushes a
	// challenge's end time.
	GracePeriodExtension Seconds = 3 * Day
)
