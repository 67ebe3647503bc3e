// Package progress derives the tracking view of a started plan and guards day completion.
package progress

import (
	"alcyxob/fitflow/internal/domain"
	"errors"
	"time"
)

// Day is the length of one cycle slot.
const Day = 24 * time.Hour

var (
	ErrInvalidDay            = errors.New("day must be between 1 and 7")
	ErrInvalidExercise       = errors.New("no such exercise on the selected day")
	ErrDayIncomplete         = errors.New("every exercise of the selected day must be checked first")
	ErrAlreadyCompletedToday = errors.New("today's workout is already completed")
	ErrCycleComplete         = errors.New("all 7 days of the cycle are completed")
)

// DaysElapsed counts whole days since start. A start in the future counts as zero.
func DaysElapsed(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / Day)
}

// ActiveDay is the cycle day for now, always in 1..7.
func ActiveDay(start, now time.Time) int {
	return DaysElapsed(start, now)%domain.DaysPerCycle + 1
}

// CompletedToday reports whether a completion was credited on today's calendar date
// and the counter already covers today's slot.
func CompletedToday(p domain.Progress, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	return sameDate(p.LastUpdated, now, loc) && p.CompletedDays > DaysElapsed(p.StartDate, now)
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
