// internal/api/onboarding_handler.go
package api

import (
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/flow"
	"alcyxob/fitflow/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct {
	onboardingService service.OnboardingService
}

func NewOnboardingHandler(onboardingService service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService}
}

// --- DTOs ---

type SaveCredentialRequest struct {
	APIKey string `json:"apiKey"`
}

type SaveProfileRequest struct {
	Name   string  `json:"name"`
	Height float64 `json:"height" binding:"required"`
	Weight float64 `json:"weight" binding:"required"`
}

type SelectGoalRequest struct {
	FitnessGoal domain.Goal `json:"fitnessGoal"`
}

type BMIQuery struct {
	Height float64 `form:"height" binding:"required"`
	Weight float64 `form:"weight" binding:"required"`
}

// StageResponse reports the stage reached by an action.
type StageResponse struct {
	Stage flow.Stage `json:"stage"`
}

type ProfileResponse struct {
	Stage   flow.Stage         `json:"stage"`
	Profile *domain.Profile    `json:"profile"`
	BMI     *service.BMIResult `json:"bmi,omitempty"`
}

type PlanResponse struct {
	Stage   flow.Stage  `json:"stage,omitempty"`
	Routine domain.Plan `json:"routine"`
}

type ProgressResponse struct {
	Stage    flow.Stage       `json:"stage"`
	Progress *domain.Progress `json:"progress"`
}

// MapProfileToResponse attaches the BMI to a profile.
func MapProfileToResponse(stage flow.Stage, p *domain.Profile) ProfileResponse {
	resp := ProfileResponse{Stage: stage, Profile: p}
	if p != nil {
		bmi := p.BMI()
		resp.BMI = &service.BMIResult{Value: bmi, Category: domain.CategorizeBMI(bmi)}
	}
	return resp
}

// --- Handler Methods ---

// GetFlow godoc
// @Summary Current onboarding state
// @Description Derives the stage from the stored records.
// @Tags Onboarding
// @Produce json
// @Success 200 {object} service.Status
// @Router /flow [get]
func (h *OnboardingHandler) GetFlow(c *gin.Context) {
	c.JSON(http.StatusOK, h.onboardingService.Status(c.Request.Context()))
}

// SaveCredential godoc
// @Summary Store the AI service key
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body SaveCredentialRequest true "API key"
// @Success 200 {object} StageResponse
// @Failure 400 {object} gin.H "Empty key"
// @Failure 409 {object} gin.H "Not in the credential stage"
// @Failure 503 {object} gin.H "Storage unavailable"
// @Router /credential [put]
func (h *OnboardingHandler) SaveCredential(c *gin.Context) {
	var req SaveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	stage, err := h.onboardingService.SaveCredential(c.Request.Context(), req.APIKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StageResponse{Stage: stage})
}

// SaveProfile godoc
// @Summary Store name, height and weight
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body SaveProfileRequest true "Profile"
// @Success 201 {object} ProfileResponse
// @Failure 400 {object} gin.H "Validation error"
// @Failure 409 {object} gin.H "Not in the profile stage"
// @Router /profile [put]
func (h *OnboardingHandler) SaveProfile(c *gin.Context) {
	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Please enter valid height and weight")
		return
	}
	profile, stage, err := h.onboardingService.SaveProfile(c.Request.Context(), req.Name, req.Height, req.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapProfileToResponse(stage, profile))
}

// ListGoals godoc
// @Summary Goal taxonomy
// @Tags Onboarding
// @Produce json
// @Success 200 {array} domain.GoalInfo
// @Router /goals [get]
func (h *OnboardingHandler) ListGoals(c *gin.Context) {
	c.JSON(http.StatusOK, domain.Goals())
}

// SelectGoal godoc
// @Summary Set the fitness goal on the stored profile
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body SelectGoalRequest true "Goal identifier"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Unknown or missing goal"
// @Failure 409 {object} gin.H "Not in the goal stage"
// @Router /profile/goal [put]
func (h *OnboardingHandler) SelectGoal(c *gin.Context) {
	var req SelectGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	profile, stage, err := h.onboardingService.SelectGoal(c.Request.Context(), req.FitnessGoal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(stage, profile))
}

// GetBMI godoc
// @Summary BMI preview for the profile form
// @Tags Onboarding
// @Produce json
// @Param height query number true "Height in cm"
// @Param weight query number true "Weight in kg"
// @Success 200 {object} service.BMIResult
// @Failure 400 {object} gin.H "Out of range"
// @Router /bmi [get]
func (h *OnboardingHandler) GetBMI(c *gin.Context) {
	var q BMIQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Please enter valid height and weight")
		return
	}
	result, err := service.ComputeBMI(q.Height, q.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GeneratePlan godoc
// @Summary Generate the plan from the stored profile
// @Description Blocks until the AI call settles and the plan is stored. Concurrent calls share one generation.
// @Tags Plan
// @Produce json
// @Success 201 {object} PlanResponse
// @Failure 409 {object} gin.H "Not in the generating stage"
// @Failure 502 {object} gin.H "Generation failed"
// @Router /plan/generate [post]
func (h *OnboardingHandler) GeneratePlan(c *gin.Context) {
	plan, stage, err := h.onboardingService.GeneratePlan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, PlanResponse{Stage: stage, Routine: plan})
}

// GetPlan godoc
// @Summary The stored plan
// @Tags Plan
// @Produce json
// @Success 200 {object} PlanResponse
// @Failure 404 {object} gin.H "No plan yet"
// @Router /plan [get]
func (h *OnboardingHandler) GetPlan(c *gin.Context) {
	plan, err := h.onboardingService.Plan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PlanResponse{Routine: plan})
}

// StartPlan godoc
// @Summary Start tracking the stored plan
// @Tags Plan
// @Produce json
// @Success 201 {object} ProgressResponse
// @Failure 409 {object} gin.H "No plan to start"
// @Router /plan/start [post]
func (h *OnboardingHandler) StartPlan(c *gin.Context) {
	progress, stage, err := h.onboardingService.StartPlan(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ProgressResponse{Stage: stage, Progress: progress})
}

// Reset godoc
// @Summary Delete every record and start over
// @Tags Onboarding
// @Produce json
// @Success 200 {object} StageResponse
// @Failure 503 {object} gin.H "Storage unavailable"
// @Router /reset [post]
func (h *OnboardingHandler) Reset(c *gin.Context) {
	if err := h.onboardingService.Reset(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StageResponse{Stage: flow.NeedCredential})
}
