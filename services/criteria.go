package services

import (
	"fmt"
	"time"

	"eco-engage-system/models"
)

// DefaultDurationThreshold caps the footprint an entry may have for the
// duration criteria when the definition carries no explicit threshold.
const DefaultDurationThreshold = 1000

// CarbonEntry is one footprint reading, ascending by date in a history.
type CarbonEntry struct {
	Footprint float64   `json:"footprint"`
	Date      time.Time `json:"date"`
}

// UserSnapshot is everything the criteria variants may look at. It is
// assembled once per check sweep so evaluation stays pure and deterministic.
type UserSnapshot struct {
	Now                 time.Time
	TotalPoints         int64
	CompletedChallenges int64
	UsersHelped         int64

	// CarbonHistory is sorted ascending by date. CarbonAvailable is false
	// when the carbon service was unreachable and no inline data came with
	// the request; carbon-backed criteria are skipped in that case.
	CarbonHistory   []CarbonEntry
	CarbonAvailable bool

	// CarbonReductionOverride carries a client-precomputed reduction
	// percentage; when set it wins over recomputing from the history.
	CarbonReductionOverride *float64
}

// Criteria is the sealed set of achievement qualification rules. Each
// variant evaluates one rule against a snapshot; construction goes through
// CriteriaFromDefinition so an unknown tag fails loudly instead of
// evaluating to false.
type Criteria interface {
	Evaluate(snap *UserSnapshot) bool
	Type() models.CriteriaType
}

// NeedsCarbon reports whether the variant reads the carbon history.
func NeedsCarbon(c Criteria) bool {
	switch c.Type() {
	case models.CriteriaCarbonReduction, models.CriteriaDuration:
		return true
	}
	return false
}

// CriteriaFromDefinition builds the concrete variant for a stored
// definition. This switch is the single place a new criteria type gets
// wired in.
func CriteriaFromDefinition(def *models.AchievementDefinition) (Criteria, error) {
	switch def.CriteriaType {
	case models.CriteriaPoints:
		return PointsCriteria{Min: int64(def.CriteriaValue)}, nil
	case models.CriteriaChallenges:
		return ChallengesCriteria{Min: int64(def.CriteriaValue)}, nil
	case models.CriteriaCarbonReduction:
		return CarbonReductionCriteria{MinPercent: def.CriteriaValue}, nil
	case models.CriteriaDuration:
		threshold := float64(DefaultDurationThreshold)
		if def.CriteriaThreshold != nil {
			threshold = *def.CriteriaThreshold
		}
		return DurationCriteria{Months: int(def.CriteriaValue), MaxFootprint: threshold}, nil
	case models.CriteriaHelpingOthers:
		return HelpingOthersCriteria{Min: int64(def.CriteriaValue)}, nil
	default:
		return nil, fmt.Errorf("unknown criteria type %q on achievement %s", def.CriteriaType, def.Slug)
	}
}

// PointsCriteria: lifetime points at or above Min.
type PointsCriteria struct {
	Min int64
}

func (c PointsCriteria) Type() models.CriteriaType { return models.CriteriaPoints }

func (c PointsCriteria) Evaluate(snap *UserSnapshot) bool {
	return snap.TotalPoints >= c.Min
}

// ChallengesCriteria: completed challenge count at or above Min.
type ChallengesCriteria struct {
	Min int64
}

func (c ChallengesCriteria) Type() models.CriteriaType { return models.CriteriaChallenges }

func (c ChallengesCriteria) Evaluate(snap *UserSnapshot) bool {
	return snap.CompletedChallenges >= c.Min
}

// CarbonReductionCriteria: footprint dropped by at least MinPercent between
// the earliest and latest entry.
type CarbonReductionCriteria struct {
	MinPercent float64
}

func (c CarbonReductionCriteria) Type() models.CriteriaType { return models.CriteriaCarbonReduction }

func (c CarbonReductionCriteria) Evaluate(snap *UserSnapshot) bool {
	if snap.CarbonReductionOverride != nil {
		return *snap.CarbonReductionOverride >= c.MinPercent
	}
	if len(snap.CarbonHistory) < 2 {
		return false
	}
	first := snap.CarbonHistory[0].Footprint
	last := snap.CarbonHistory[len(snap.CarbonHistory)-1].Footprint
	if first <= 0 {
		return false
	}
	reduction := ((first - last) / first) * 100
	return reduction >= c.MinPercent
}

// DurationCriteria: every one of the last Months calendar months (current
// month included) has at least one entry, and no entry in that window
// exceeds MaxFootprint.
type DurationCriteria struct {
	Months       int
	MaxFootprint float64
}

func (c DurationCriteria) Type() models.CriteriaType { return models.CriteriaDuration }

func (c DurationCriteria) Evaluate(snap *UserSnapshot) bool {
	if c.Months < 1 {
		return false
	}
	covered := make(map[string]bool, c.Months)
	windowStart := monthKey(snap.Now.AddDate(0, -(c.Months - 1), 0))
	for _, entry := range snap.CarbonHistory {
		key := monthKey(entry.Date)
		if key < windowStart || key > monthKey(snap.Now) {
			continue
		}
		if entry.Footprint > c.MaxFootprint {
			return false
		}
		covered[key] = true
	}
	return len(covered) >= c.Months
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// HelpingOthersCriteria: users helped counter at or above Min.
type HelpingOthersCriteria struct {
	Min int64
}

func (c HelpingOthersCriteria) Type() models.CriteriaType { return models.CriteriaHelpingOthers }

func (c HelpingOthersCriteria) Evaluate(snap *UserSnapshot) bool {
	return snap.UsersHelped >= c.Min
}
