package progress

import (
	"alcyxob/fitflow/internal/domain"
	"time"
)

type flagKey struct {
	day, index int
}

// Tracker is the transient, per-session part of tracking: the day being viewed and
// which of its exercises are checked. Nothing here is persisted.
type Tracker struct {
	selected int
	checked  map[flagKey]bool
}

// NewTracker starts viewing day.
func NewTracker(day int) *Tracker {
	if day < 1 || day > domain.DaysPerCycle {
		day = 1
	}
	return &Tracker{selected: day, checked: make(map[flagKey]bool)}
}

// Selected is the day being viewed.
func (t *Tracker) Selected() int { return t.selected }

// SelectDay switches the viewed day. Changing day clears every checked exercise.
func (t *Tracker) SelectDay(day int) error {
	if day < 1 || day > domain.DaysPerCycle {
		return ErrInvalidDay
	}
	if day != t.selected {
		t.selected = day
		t.clear()
	}
	return nil
}

// Toggle flips the checked flag of exercise index on the selected day.
func (t *Tracker) Toggle(p domain.Progress, index int) (bool, error) {
	dp, ok := p.Routine.Day(t.selected)
	if !ok || index < 0 || index >= len(dp.Exercises) {
		return false, ErrInvalidExercise
	}
	k := flagKey{t.selected, index}
	t.checked[k] = !t.checked[k]
	return t.checked[k], nil
}

// Checked reports the flags of the selected day's exercises, in order.
func (t *Tracker) Checked(p domain.Progress) []bool {
	dp, ok := p.Routine.Day(t.selected)
	if !ok {
		return []bool{}
	}
	out := make([]bool, len(dp.Exercises))
	for i := range dp.Exercises {
		out[i] = t.checked[flagKey{t.selected, i}]
	}
	return out
}

// CanComplete is true when the selected day exists and all its exercises are checked.
func (t *Tracker) CanComplete(p domain.Progress) bool {
	dp, ok := p.Routine.Day(t.selected)
	if !ok || len(dp.Exercises) == 0 {
		return false
	}
	for i := range dp.Exercises {
		if !t.checked[flagKey{t.selected, i}] {
			return false
		}
	}
	return true
}

// CompleteDay credits one day and returns the updated record for the caller to store.
// Neither p nor the flags are modified; call ClearChecks once the record is saved.
func (t *Tracker) CompleteDay(p domain.Progress, now time.Time, loc *time.Location) (domain.Progress, error) {
	switch {
	case p.CompletedDays >= domain.DaysPerCycle:
		return p, ErrCycleComplete
	case CompletedToday(p, now, loc):
		return p, ErrAlreadyCompletedToday
	case !t.CanComplete(p):
		return p, ErrDayIncomplete
	}
	p.CompletedDays++
	p.LastUpdated = now
	return p, nil
}

// ClearChecks unchecks every exercise.
func (t *Tracker) ClearChecks() {
	t.clear()
}

func (t *Tracker) clear() {
	t.checked = make(map[flagKey]bool)
}

// View is everything the tracking screen shows.
type View struct {
	Name           string          `json:"name"`
	SelectedDay    int             `json:"selectedDay"`
	ActiveDay      int             `json:"activeDay"`
	DayPlan        *domain.DayPlan `json:"dayPlan"` // nil when the plan has no such day
	Checked        []bool          `json:"checked"`
	CanComplete    bool            `json:"canComplete"`
	CompletedDays  int             `json:"completedDays"`
	Percentage     int             `json:"percentage"`
	CompletedToday bool            `json:"completedToday"`
	CycleComplete  bool            `json:"cycleComplete"`
	StartDate      time.Time       `json:"startDate"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

// View computes the tracking view at now.
func (t *Tracker) View(p domain.Progress, now time.Time, loc *time.Location) View {
	v := View{
		Name:           p.UserProfile.Name,
		SelectedDay:    t.selected,
		ActiveDay:      ActiveDay(p.StartDate, now),
		Checked:        t.Checked(p),
		CompletedDays:  p.CompletedDays,
		Percentage:     p.Percentage(),
		CompletedToday: CompletedToday(p, now, loc),
		CycleComplete:  p.CompletedDays >= domain.DaysPerCycle,
		StartDate:      p.StartDate,
		LastUpdated:    p.LastUpdated,
	}
	if dp, ok := p.Routine.Day(t.selected); ok {
		v.DayPlan = &dp
	}
	v.CanComplete = t.CanComplete(p) && !v.CompletedToday && !v.CycleComplete
	return v
}
