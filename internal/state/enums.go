package state

import (
	"fmt"
	"strings"
)

// ChallengeStatus is the lifecycle state of a challenge. Active is the only
// non-terminal status, a challenge leaves it exactly once at finalization.
type ChallengeStatus uint8

const (
	StatusActive ChallengeStatus = iota
	StatusCompleted
	StatusPartiallyCompleted
	StatusFailed
	// StatusCancelled is reserved. No operation produces it.
	StatusCancelled
)

func (s ChallengeStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusPartiallyCompleted:
		return "partially_completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// IsTerminal reports whether s is one of the final statuses.
func (s ChallengeStatus) IsTerminal() bool {
	return s != StatusActive
}

// ChallengeType selects the per-session metadata rules.
type ChallengeType uint8

const (
	TypeFitness ChallengeType = iota
	TypeEducation
	TypeMeditation
	TypeCustom
)

// IsValid reports whether t is one of the known challenge types.
func (t ChallengeType) IsValid() bool {
	return t <= TypeCustom
}

func (t ChallengeType) String() string {
	switch t {
	case TypeFitness:
		return "fitness"
	case TypeEducation:
		return "education"
	case TypeMeditation:
		return "meditation"
	case TypeCustom:
		return "custom"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseChallengeType maps a case-insensitive name to a ChallengeType.
func ParseChallengeType(s string) (ChallengeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fitness":
		return TypeFitness, nil
	case "education":
		return TypeEducation, nil
	case "meditation":
		return TypeMeditation, nil
	case "custom":
		return TypeCustom, nil
	default:
		return 0, fmt.Errorf("unknown challenge type %q", s)
	}
}
