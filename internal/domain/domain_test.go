package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBMI(t *testing.T) {
	tests := []struct {
		name     string
		height   float64
		weight   float64
		want     float64
		category BMICategory
	}{
		{"boundary overweight", 180, 81, 25.0, BMIOverweight},
		{"normal", 175, 70, 22.9, BMINormal},
		{"underweight", 180, 55, 17.0, BMIUnderweight},
		{"obese", 160, 90, 35.2, BMIObese},
		{"normal lower edge", 200, 74, 18.5, BMINormal},
		{"obese lower edge", 100.5, 30.3, 30.0, BMIObese},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBMI(tt.height, tt.weight)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.category, CategorizeBMI(got))
		})
	}
}

func TestNewProfile_Validation(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	p, err := NewProfile("  Ada  ", 170, 65, now)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Empty(t, p.FitnessGoal)
	assert.False(t, p.HasGoal())
	assert.Equal(t, now, p.CreatedAt)

	cases := []struct {
		name   string
		pname  string
		height float64
		weight float64
		field  string
	}{
		{"empty name", "   ", 170, 65, "name"},
		{"height at lower bound", "Ada", 100, 65, "height"},
		{"height too tall", "Ada", 250.1, 65, "height"},
		{"weight at lower bound", "Ada", 170, 20, "weight"},
		{"weight too heavy", "Ada", 170, 301, "weight"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProfile(tc.pname, tc.height, tc.weight, now)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	_, err = NewProfile("Ada", 250, 300, now)
	assert.NoError(t, err, "upper bounds are inclusive")
}

func TestProfile_WithGoal(t *testing.T) {
	p := Profile{Name: "Ada", Height: 170, Weight: 65}

	withGoal, err := p.WithGoal(GoalStrength)
	require.NoError(t, err)
	assert.Equal(t, GoalStrength, withGoal.FitnessGoal)
	assert.Empty(t, p.FitnessGoal, "original is untouched")

	_, err = p.WithGoal("couch-potato")
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestGoalLabels(t *testing.T) {
	assert.Len(t, Goals(), 6)
	assert.Equal(t, "Recomposition (Fat Loss + Muscle Gain)", GoalRecomposition.Label())
	assert.Equal(t, "Rehab / Mobility", GoalRehabMobility.Label())
	assert.Equal(t, "mystery", Goal("mystery").Label())
}

func samplePlan() Plan {
	return Plan{
		{Day: 1, DayName: "Monday", Focus: "Legs", Exercises: []Exercise{
			{Name: "Squat", Sets: 4, Reps: "8-10", Rest: "90s"},
			{Name: "Lunge", Sets: 3, Reps: "12", Rest: "60s", Notes: "Alternate legs"},
		}},
		{Day: 2, Exercises: []Exercise{{Name: "Row", Sets: 3, Reps: "10", Rest: "60s"}}},
	}
}

func TestPlan_Validate(t *testing.T) {
	require.NoError(t, samplePlan().Validate())

	var ve *ValidationError

	assert.True(t, errors.As(Plan{}.Validate(), &ve))

	noExercises := samplePlan()
	noExercises[1].Exercises = nil
	assert.True(t, errors.As(noExercises.Validate(), &ve))
	assert.Equal(t, "routine[1].exercises", ve.Field)

	dup := samplePlan()
	dup[1].Day = 1
	assert.True(t, errors.As(dup.Validate(), &ve))

	outOfRange := samplePlan()
	outOfRange[0].Day = 8
	assert.True(t, errors.As(outOfRange.Validate(), &ve))

	unnamed := samplePlan()
	unnamed[0].Exercises[1].Name = ""
	assert.True(t, errors.As(unnamed.Validate(), &ve))
	assert.Equal(t, "routine[0].exercises[1].name", ve.Field)
}

func TestPlan_DayAndClone(t *testing.T) {
	plan := samplePlan()
	d, ok := plan.Day(2)
	require.True(t, ok)
	assert.Equal(t, "Row", d.Exercises[0].Name)
	_, ok = plan.Day(5)
	assert.False(t, ok)

	clone := plan.Clone()
	clone[0].Exercises[0].Name = "Front Squat"
	assert.Equal(t, "Squat", plan[0].Exercises[0].Name)
}

func TestStartProgress_Snapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	plan := samplePlan()
	profile := Profile{Name: "Ada", Height: 170, Weight: 65, FitnessGoal: GoalStrength}

	prog := StartProgress(profile, plan, now)
	plan[0].Exercises[0].Name = "Changed"
	profile.Name = "Changed"

	assert.Equal(t, "Squat", prog.Routine[0].Exercises[0].Name)
	assert.Equal(t, "Ada", prog.UserProfile.Name)
	assert.Equal(t, 0, prog.CompletedDays)
	assert.Equal(t, now, prog.StartDate)
	assert.Equal(t, now, prog.LastUpdated)
}

func TestProgress_Percentage(t *testing.T) {
	for days, want := range map[int]int{0: 0, 1: 14, 3: 43, 6: 86, 7: 100, 9: 100} {
		assert.Equal(t, want, Progress{CompletedDays: days}.Percentage(), "days=%d", days)
	}
}

func TestRecordKeys(t *testing.T) {
	assert.Equal(t, []string{KeyCredential, KeyProfile, KeyPlan, KeyProgress}, RecordKeys())
	kind, ok := RecordKindForKey(KeyPlan)
	require.True(t, ok)
	assert.Equal(t, RecordPlan, kind)
	_, ok = RecordKindForKey("nope")
	assert.False(t, ok)
}
