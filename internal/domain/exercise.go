// internal/domain/exercise.go
package domain

// Exercise is a single movement prescribed for one day of a Plan.
type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`            // May be a range, e.g. "8-10"
	Rest  string `json:"rest"`            // Human-readable duration, e.g. "90 seconds"
	Notes string `json:"notes,omitempty"` // Optional coaching cue
}

// Validate checks the fields every stored exercise must carry.
func (e Exercise) Validate() error {
	if e.Name == "" {
		return &ValidationError{Field: "name", Message: "exercise name is required"}
	}
	if e.Sets < 1 {
		return &ValidationError{Field: "sets", Message: "exercise must have at least one set"}
	}
	return nil
}
