package model

import "fmt"

// Level is the escalation level of a decision. Higher is more conservative.
type Level int

const (
	LevelNormal       Level = 0 // automatic, action applied as selected
	LevelSoftSafe     Level = 1 // action reshaped by the soft clamp
	LevelHardFailSafe Level = 2 // human required
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelSoftSafe:
		return "SOFT_SAFE"
	case LevelHardFailSafe:
		return "HARD_FAIL_SAFE"
	default:
		return "UNKNOWN"
	}
}

// LevelLabel returns a lower-case label for reports.
func LevelLabel(l Level) string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelSoftSafe:
		return "soft-safe"
	case LevelHardFailSafe:
		return "hard-fail-safe"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l >= LevelNormal && l <= LevelHardFailSafe
}

// AtLeast raises l to floor. It never lowers a level.
func (l Level) AtLeast(floor Level) Level {
	if floor > l {
		return floor
	}
	return l
}
