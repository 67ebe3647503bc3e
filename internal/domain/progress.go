// internal/domain/progress.go
package domain

import "time"

// Progress is created once, when the user starts the plan. It holds snapshots of the
// profile and plan taken at that instant, not live references.
type Progress struct {
	UserProfile   Profile   `json:"userProfile"`
	Routine       Plan      `json:"routine"`
	StartDate     time.Time `json:"startDate"`
	CompletedDays int       `json:"completedDays"` // Non-decreasing, at most DaysPerCycle
	LastUpdated   time.Time `json:"lastUpdated"`
}

// StartProgress snapshots the profile and plan into a fresh Progress record.
func StartProgress(profile Profile, plan Plan, now time.Time) Progress {
	return Progress{
		UserProfile:   profile,
		Routine:       plan.Clone(),
		StartDate:     now,
		CompletedDays: 0,
		LastUpdated:   now,
	}
}

// Percentage of the cycle completed, rounded to the nearest whole percent.
func (p Progress) Percentage() int {
	done := p.CompletedDays
	if done > DaysPerCycle {
		done = DaysPerCycle
	}
	return (done*100 + DaysPerCycle/2) / DaysPerCycle
}
