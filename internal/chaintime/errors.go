package chaintime

import "errors"

var (
	// ErrTimeOverflow is returned when extending a timestamp would move it
	// past the largest representable instant.
	ErrTimeOverflow = errors.New("time calculation overflow")

	// ErrNegativeDuration is returned when a negative duration is passed where
	// only forward extensions are allowed.
	ErrNegativeDuration = errors.New("negative duration")
)
