// internal/domain/goal.go
package domain

// Goal identifies the fitness goal selected by the user.
type Goal string

const (
	GoalFatLoss        Goal = "fat-loss"
	GoalMuscleGain     Goal = "muscle-gain"
	GoalRecomposition  Goal = "recomposition"
	GoalStrength       Goal = "strength"
	GoalGeneralFitness Goal = "general-fitness"
	GoalRehabMobility  Goal = "rehab-mobility"
)

// GoalInfo describes one goal for the selection screen and the generation prompt.
type GoalInfo struct {
	ID          Goal   `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	PromptLabel string `json:"-"` // Wording used when asking for a plan
}

var goals = []GoalInfo{
	{ID: GoalFatLoss, Label: "Fat Loss", Description: "Lose weight and reduce body fat", PromptLabel: "Fat Loss"},
	{ID: GoalMuscleGain, Label: "Muscle Gain", Description: "Build lean muscle and strength", PromptLabel: "Muscle Gain"},
	{ID: GoalRecomposition, Label: "Recomposition", Description: "Lose fat while gaining muscle", PromptLabel: "Recomposition (Fat Loss + Muscle Gain)"},
	{ID: GoalStrength, Label: "Strength", Description: "Increase your maximum strength", PromptLabel: "Strength"},
	{ID: GoalGeneralFitness, Label: "General Fitness", Description: "Improve overall health and fitness", PromptLabel: "General Fitness"},
	{ID: GoalRehabMobility, Label: "Rehab / Mobility", Description: "Recover and improve mobility", PromptLabel: "Rehab / Mobility"},
}

// Goals returns the goal taxonomy in display order.
func Goals() []GoalInfo {
	out := make([]GoalInfo, len(goals))
	copy(out, goals)
	return out
}

// LookupGoal finds the taxonomy entry for an identifier.
func LookupGoal(id Goal) (GoalInfo, bool) {
	for _, g := range goals {
		if g.ID == id {
			return g, true
		}
	}
	return GoalInfo{}, false
}

// Label returns the human-readable prompt label, or the raw identifier if unknown.
func (g Goal) Label() string {
	if info, ok := LookupGoal(g); ok {
		return info.PromptLabel
	}
	return string(g)
}
