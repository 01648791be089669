package services

import (
	"testing"
	"time"

	"eco-engage-system/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestPointsCriteria(t *testing.T) {
	tests := []struct {
		name   string
		min    int64
		points int64
		want   bool
	}{
		{"below threshold", 100, 99, false},
		{"at threshold", 100, 100, true},
		{"above threshold", 100, 250, true},
		{"zero points", 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := PointsCriteria{Min: tt.min}
			got := c.Evaluate(&UserSnapshot{TotalPoints: tt.points})
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChallengesCriteria(t *testing.T) {
	c := ChallengesCriteria{Min: 1}
	if c.Evaluate(&UserSnapshot{CompletedChallenges: 0}) {
		t.Error("0 completed challenges should not satisfy min 1")
	}
	if !c.Evaluate(&UserSnapshot{CompletedChallenges: 1}) {
		t.Error("1 completed challenge should satisfy min 1")
	}
}

func TestHelpingOthersCriteria(t *testing.T) {
	c := HelpingOthersCriteria{Min: 5}
	if c.Evaluate(&UserSnapshot{UsersHelped: 4}) {
		t.Error("4 users helped should not satisfy min 5")
	}
	if !c.Evaluate(&UserSnapshot{UsersHelped: 5}) {
		t.Error("5 users helped should satisfy min 5")
	}
}

func TestCarbonReductionCriteria(t *testing.T) {
	tests := []struct {
		name    string
		min     float64
		history []CarbonEntry
		want    bool
	}{
		{
			name: "30 percent reduction passes 20",
			min:  20,
			history: []CarbonEntry{
				{Footprint: 100, Date: date(2026, time.January, 1)},
				{Footprint: 70, Date: date(2026, time.February, 1)},
			},
			want: true,
		},
		{
			name: "zero first entry guards division",
			min:  20,
			history: []CarbonEntry{
				{Footprint: 0, Date: date(2026, time.January, 1)},
				{Footprint: 5, Date: date(2026, time.February, 1)},
			},
			want: false,
		},
		{
			name: "single entry is insufficient",
			min:  20,
			history: []CarbonEntry{
				{Footprint: 100, Date: date(2026, time.January, 1)},
			},
			want: false,
		},
		{
			name:    "empty history",
			min:     20,
			history: nil,
			want:    false,
		},
		{
			name: "footprint went up",
			min:  10,
			history: []CarbonEntry{
				{Footprint: 100, Date: date(2026, time.January, 1)},
				{Footprint: 130, Date: date(2026, time.February, 1)},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CarbonReductionCriteria{MinPercent: tt.min}
			got := c.Evaluate(&UserSnapshot{CarbonHistory: tt.history, CarbonAvailable: true})
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCarbonReductionOverride(t *testing.T) {
	c := CarbonReductionCriteria{MinPercent: 20}
	override := 25.0
	if !c.Evaluate(&UserSnapshot{CarbonReductionOverride: &override}) {
		t.Error("override of 25 should satisfy min 20")
	}
	low := 10.0
	if c.Evaluate(&UserSnapshot{CarbonReductionOverride: &low}) {
		t.Error("override of 10 should not satisfy min 20")
	}
}

func TestDurationCriteria(t *testing.T) {
	now := date(2026, time.August, 15)
	tests := []struct {
		name    string
		months  int
		max     float64
		history []CarbonEntry
		want    bool
	}{
		{
			name:   "three consecutive low months",
			months: 3,
			max:    1000,
			history: []CarbonEntry{
				{Footprint: 800, Date: date(2026, time.June, 10)},
				{Footprint: 900, Date: date(2026, time.July, 10)},
				{Footprint: 700, Date: date(2026, time.August, 10)},
			},
			want: true,
		},
		{
			name:   "missing middle month",
			months: 3,
			max:    1000,
			history: []CarbonEntry{
				{Footprint: 800, Date: date(2026, time.June, 10)},
				{Footprint: 700, Date: date(2026, time.August, 10)},
			},
			want: false,
		},
		{
			name:   "one month over the cap",
			months: 3,
			max:    1000,
			history: []CarbonEntry{
				{Footprint: 800, Date: date(2026, time.June, 10)},
				{Footprint: 1200, Date: date(2026, time.July, 10)},
				{Footprint: 700, Date: date(2026, time.August, 10)},
			},
			want: false,
		},
		{
			name:   "entries before the window are ignored",
			months: 2,
			max:    1000,
			history: []CarbonEntry{
				{Footprint: 5000, Date: date(2026, time.March, 10)},
				{Footprint: 800, Date: date(2026, time.July, 10)},
				{Footprint: 700, Date: date(2026, time.August, 10)},
			},
			want: true,
		},
		{
			name:    "no history",
			months:  1,
			max:     1000,
			history: nil,
			want:    false,
		},
		{
			name:   "zero months never passes",
			months: 0,
			max:    1000,
			history: []CarbonEntry{
				{Footprint: 800, Date: date(2026, time.August, 10)},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DurationCriteria{Months: tt.months, MaxFootprint: tt.max}
			got := c.Evaluate(&UserSnapshot{Now: now, CarbonHistory: tt.history, CarbonAvailable: true})
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriteriaFromDefinition(t *testing.T) {
	def := &models.AchievementDefinition{
		Slug:          "test",
		CriteriaType:  models.CriteriaDuration,
		CriteriaValue: 3,
	}
	c, err := CriteriaFromDefinition(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dc, ok := c.(DurationCriteria)
	if !ok {
		t.Fatalf("expected DurationCriteria, got %T", c)
	}
	if dc.MaxFootprint != DefaultDurationThreshold {
		t.Errorf("default threshold = %v, want %v", dc.MaxFootprint, float64(DefaultDurationThreshold))
	}

	threshold := 500.0
	def.CriteriaThreshold = &threshold
	c, _ = CriteriaFromDefinition(def)
	if c.(DurationCriteria).MaxFootprint != 500 {
		t.Errorf("explicit threshold not applied")
	}

	def.CriteriaType = "streak"
	if _, err := CriteriaFromDefinition(def); err == nil {
		t.Error("unknown criteria type should error, not evaluate false")
	}
}

func TestNeedsCarbon(t *testing.T) {
	if NeedsCarbon(PointsCriteria{}) || NeedsCarbon(ChallengesCriteria{}) || NeedsCarbon(HelpingOthersCriteria{}) {
		t.Error("non-carbon variants flagged as carbon-backed")
	}
	if !NeedsCarbon(CarbonReductionCriteria{}) || !NeedsCarbon(DurationCriteria{}) {
		t.Error("carbon-backed variants not flagged")
	}
}
