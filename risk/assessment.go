package risk

import (
	"slices"
)

// Factor names a signal that raised the risk score
type Factor string

const (
	FactorOutsideWorkingHours    Factor = "outside_working_hours"
	FactorUnusualLocation        Factor = "unusual_location"
	FactorNewDevice              Factor = "new_device"
	FactorSensitiveAction        Factor = "sensitive_action"
	FactorBulkOperation          Factor = "bulk_operation"
	FactorMultipleFailedAttempts Factor = "multiple_failed_attempts"
)

// factorWeights are the points each factor adds to the score
var factorWeights = map[Factor]int{
	FactorOutsideWorkingHours:    15,
	FactorUnusualLocation:        25,
	FactorNewDevice:              20,
	FactorSensitiveAction:        25,
	FactorBulkOperation:          20,
	FactorMultipleFailedAttempts: 30,
}

type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelRanks = map[Level]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// LevelFor maps a clamped score to its level
func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Exceeds reports whether l is strictly above limit. An unknown limit is never exceeded.
func (l Level) Exceeds(limit Level) bool {
	limitRank, ok := levelRanks[limit]
	if !ok {
		return false
	}
	return levelRanks[l] > limitRank
}

// Assessment is the scored outcome of one access context
type Assessment struct {
	Score   int      `json:"score"`
	Level   Level    `json:"level"`
	Factors []Factor `json:"factors"`
}

func (a *Assessment) Has(f Factor) bool {
	return slices.Contains(a.Factors, f)
}

func (a *Assessment) add(f Factor) {
	a.Factors = append(a.Factors, f)
	a.Score += factorWeights[f]
}

func (a *Assessment) finish() {
	a.Score = max(0, min(100, a.Score))
	a.Level = LevelFor(a.Score)
}
