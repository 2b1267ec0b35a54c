package triage

import "strings"

// Level is the urgency assigned to a symptom description.
type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelNormal   Level = "NORMAL"
)

var recommendations = map[Level]string{
	LevelCritical: "CRITICAL: Immediate attention required. Booking fastest available slot.",
	LevelHigh:     "HIGH: Urgent attention needed. Prioritizing slots.",
	LevelNormal:   "NORMAL: Routine booking. Standard slot allocation.",
}

// ParseLevel accepts a level name in any case. ok is false for unknown names.
func ParseLevel(raw string) (Level, bool) {
	switch Level(strings.ToUpper(strings.TrimSpace(raw))) {
	case LevelCritical:
		return LevelCritical, true
	case LevelHigh:
		return LevelHigh, true
	case LevelNormal:
		return LevelNormal, true
	default:
		return "", false
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	_, ok := recommendations[l]
	return ok
}

// Recommendation returns the fixed patient-facing guidance for a level.
func (l Level) Recommendation() string {
	return recommendations[l]
}

func (l Level) String() string {
	return string(l)
}
