// internal/domain/training_plan.go
package domain

import (
	"errors"
	"fmt"
)

// DaysPerCycle is the length of one plan cycle.
const DaysPerCycle = 7

// DayPlan is one day's exercise set within a Plan.
type DayPlan struct {
	Day       int        `json:"day"`                // 1..7, unique within a plan
	DayName   string     `json:"dayName,omitempty"`  // e.g. "Monday"
	Focus     string     `json:"focus,omitempty"`    // e.g. "Chest & Triceps"
	Exercises []Exercise `json:"exercises"`
}

// Plan is the generated weekly routine. It is stored as a bare JSON array of days.
type Plan []DayPlan

// Validate enforces the shape every persisted plan must have: at least one day,
// day numbers within the cycle and unique, and at least one valid exercise per day.
func (p Plan) Validate() error {
	if len(p) == 0 {
		return &ValidationError{Field: "routine", Message: "plan has no days"}
	}
	seen := make(map[int]bool, len(p))
	for i, day := range p {
		if day.Day < 1 || day.Day > DaysPerCycle {
			return &ValidationError{Field: fmt.Sprintf("routine[%d].day", i), Message: fmt.Sprintf("day %d is outside 1..%d", day.Day, DaysPerCycle)}
		}
		if seen[day.Day] {
			return &ValidationError{Field: fmt.Sprintf("routine[%d].day", i), Message: fmt.Sprintf("day %d appears more than once", day.Day)}
		}
		seen[day.Day] = true

		if len(day.Exercises) == 0 {
			return &ValidationError{Field: fmt.Sprintf("routine[%d].exercises", i), Message: fmt.Sprintf("day %d has no exercises", day.Day)}
		}
		for j, ex := range day.Exercises {
			var ve *ValidationError
			if err := ex.Validate(); errors.As(err, &ve) {
				return &ValidationError{Field: fmt.Sprintf("routine[%d].exercises[%d].%s", i, j, ve.Field), Message: ve.Message}
			}
		}
	}
	return nil
}

// Day returns the DayPlan for the given day number, if the plan has one.
func (p Plan) Day(day int) (DayPlan, bool) {
	for _, d := range p {
		if d.Day == day {
			return d, true
		}
	}
	return DayPlan{}, false
}

// Clone returns a deep copy, so a snapshot never shares exercise slices with its source.
func (p Plan) Clone() Plan {
	if p == nil {
		return nil
	}
	out := make(Plan, len(p))
	for i, d := range p {
		out[i] = d
		out[i].Exercises = append([]Exercise(nil), d.Exercises...)
	}
	return out
}
