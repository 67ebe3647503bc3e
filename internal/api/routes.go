package api

import (
	"alcyxob/fitflow/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds a gin engine with logging, recovery and session middleware.
func NewRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(logger), RequestLogger(logger), SessionMiddleware())
	return router
}

func SetupRoutes(
	router *gin.Engine,
	onboardingService service.OnboardingService,
	trackingService service.TrackingService,
	hub *Hub,
) {
	onboardingHandler := NewOnboardingHandler(onboardingService)
	trackingHandler := NewTrackingHandler(trackingService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/flow", onboardingHandler.GetFlow)
		apiV1.PUT("/credential", onboardingHandler.SaveCredential)
		apiV1.POST("/reset", onboardingHandler.Reset)

		// --- Profile Routes ---
		apiV1.PUT("/profile", onboardingHandler.SaveProfile)
		apiV1.PUT("/profile/goal", onboardingHandler.SelectGoal)
		apiV1.GET("/goals", onboardingHandler.ListGoals)
		apiV1.GET("/bmi", onboardingHandler.GetBMI)

		// --- Plan Routes ---
		planGroup := apiV1.Group("/plan")
		{
			planGroup.GET("", onboardingHandler.GetPlan)
			planGroup.POST("/generate", onboardingHandler.GeneratePlan)
			planGroup.POST("/start", onboardingHandler.StartPlan)
		}

		// --- Progress Routes ---
		// Checked exercises are per tab, keyed by X-Session-ID.
		progressGroup := apiV1.Group("/progress")
		{
			progressGroup.GET("", trackingHandler.GetProgress)
			progressGroup.PUT("/day", trackingHandler.SelectDay)
			progressGroup.POST("/exercises/:index/toggle", trackingHandler.ToggleExercise)
			progressGroup.POST("/complete", trackingHandler.CompleteDay)
		}

		if hub != nil {
			apiV1.GET("/sync", hub.Sync)
		}
	}
}
