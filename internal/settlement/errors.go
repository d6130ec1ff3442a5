package settlement

import "errors"

var (
	ErrInvalidPercentageDistribution = errors.New("fee, reward and charity percentages must sum to 100")
	ErrInvalidSessionCount           = errors.New("invalid session count")
)
