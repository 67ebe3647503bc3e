// internal/domain/profile.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Accepted biometric ranges. Lower bounds are exclusive, upper bounds inclusive.
const (
	MinHeightCm = 100.0
	MaxHeightCm = 250.0
	MinWeightKg = 20.0
	MaxWeightKg = 300.0
)

// ValidationError reports bad user input. It is shown inline and never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Profile is the user's biometric profile plus the goal chosen in a later stage.
type Profile struct {
	Name        string    `json:"name"`
	Height      float64   `json:"height"`      // cm
	Weight      float64   `json:"weight"`      // kg
	FitnessGoal Goal      `json:"fitnessGoal"` // Empty until the goal stage completes
	CreatedAt   time.Time `json:"createdAt"`
}

// NewProfile validates the entry-form values and builds a Profile without a goal.
func NewProfile(name string, height, weight float64, now time.Time) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "please enter your name"}
	}
	if err := ValidateBiometrics(height, weight); err != nil {
		return nil, err
	}
	return &Profile{
		Name:      name,
		Height:    height,
		Weight:    weight,
		CreatedAt: now,
	}, nil
}

// ValidateBiometrics checks height and weight against the accepted ranges.
func ValidateBiometrics(height, weight float64) error {
	if height <= MinHeightCm || height > MaxHeightCm {
		return &ValidationError{Field: "height", Message: fmt.Sprintf("height should be above %.0f and at most %.0f cm", MinHeightCm, MaxHeightCm)}
	}
	if weight <= MinWeightKg || weight > MaxWeightKg {
		return &ValidationError{Field: "weight", Message: fmt.Sprintf("weight should be above %.0f and at most %.0f kg", MinWeightKg, MaxWeightKg)}
	}
	return nil
}

// HasGoal reports whether the goal stage has been completed.
func (p *Profile) HasGoal() bool {
	return p != nil && p.FitnessGoal != ""
}

// WithGoal returns a copy of the profile with the goal set.
func (p Profile) WithGoal(g Goal) (Profile, error) {
	if _, ok := LookupGoal(g); !ok {
		return p, &ValidationError{Field: "fitnessGoal", Message: fmt.Sprintf("unknown goal %q", g)}
	}
	p.FitnessGoal = g
	return p, nil
}

// BMI of this profile.
func (p Profile) BMI() float64 {
	return CalculateBMI(p.Height, p.Weight)
}
