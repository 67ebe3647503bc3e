// Package flow is the onboarding state machine.
package flow

import (
	"errors"
	"fmt"
)

// Stage is one step of onboarding.
type Stage string

const (
	NeedCredential Stage = "need-credential"
	NeedProfile    Stage = "need-profile"
	NeedGoal       Stage = "need-goal"
	Generating     Stage = "generating"
	PlanReady      Stage = "plan-ready"
	Tracking       Stage = "tracking"
)

// Stages lists every stage in onboarding order.
var Stages = []Stage{NeedCredential, NeedProfile, NeedGoal, Generating, PlanReady, Tracking}

// Event is a completed user action.
type Event string

const (
	CredentialSaved Event = "credential-saved"
	ProfileSaved    Event = "profile-saved"
	GoalSelected    Event = "goal-selected"
	PlanGenerated   Event = "plan-generated"
	PlanStarted     Event = "plan-started"
	Reset           Event = "reset"
)

// ErrIllegalTransition is returned when an event does not complete the current stage.
var ErrIllegalTransition = errors.New("illegal stage transition")

// forward maps each stage to the one event that completes it.
var forward = map[Stage]struct {
	on   Event
	next Stage
}{
	NeedCredential: {CredentialSaved, NeedProfile},
	NeedProfile:    {ProfileSaved, NeedGoal},
	NeedGoal:       {GoalSelected, Generating},
	Generating:     {PlanGenerated, PlanReady},
	PlanReady:      {PlanStarted, Tracking},
}

// Facts is what the store holds, reduced to what stage derivation needs.
type Facts struct {
	HasCredential bool
	HasProfile    bool
	HasGoal       bool
	HasPlan       bool
	HasProgress   bool
}

// Derive picks the starting stage from stored records. Later records upgrade the
// stage further along, regardless of which earlier records are present.
func Derive(f Facts) Stage {
	switch {
	case f.HasProgress:
		return Tracking
	case f.HasPlan && f.HasProfile:
		return PlanReady
	case f.HasProfile && f.HasGoal:
		// Generation was interrupted; re-attempt it from the stored profile.
		return Generating
	case f.HasProfile:
		return NeedGoal
	case f.HasCredential:
		return NeedProfile
	}
	return NeedCredential
}

// Machine holds the current stage. It is not safe for concurrent use; callers
// rebuild it from the store for every action.
type Machine struct {
	stage Stage
}

// NewMachine starts at stage.
func NewMachine(stage Stage) *Machine {
	return &Machine{stage: stage}
}

// FromFacts starts at the derived stage.
func FromFacts(f Facts) *Machine {
	return NewMachine(Derive(f))
}

func (m *Machine) Stage() Stage { return m.stage }

// Can reports whether ev is legal now.
func (m *Machine) Can(ev Event) bool {
	if ev == Reset {
		return true
	}
	t, ok := forward[m.stage]
	return ok && t.on == ev
}

// Fire applies ev. Reset returns to NeedCredential from any stage.
func (m *Machine) Fire(ev Event) (Stage, error) {
	if ev == Reset {
		m.stage = NeedCredential
		return m.stage, nil
	}
	t, ok := forward[m.stage]
	if !ok || t.on != ev {
		return m.stage, fmt.Errorf("%w: %s in stage %s", ErrIllegalTransition, ev, m.stage)
	}
	m.stage = t.next
	return m.stage, nil
}
