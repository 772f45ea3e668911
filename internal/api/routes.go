package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"futureintern/internship-app/internal/config"
	"futureintern/internship-app/internal/service"
)

// RouterOptions carries the settings the middleware stack needs.
type RouterOptions struct {
	JWTSecret    string
	Logger       zerolog.Logger
	ExposeErrors bool
	RateLimit    config.RateLimitConfig
}

func SetupRoutes(
	router *gin.Engine,
	opts RouterOptions,
	authService service.AuthService,
	internshipService service.InternshipService,
	taskService service.TaskService,
	certificateService service.CertificateService,
) error {
	if err := RegisterValidators(); err != nil {
		return err
	}

	authHandler := NewAuthHandler(authService)
	internshipHandler := NewInternshipHandler(internshipService)
	taskHandler := NewTaskHandler(taskService)
	certificateHandler := NewCertificateHandler(certificateService)

	authMiddleware := AuthMiddleware(opts.JWTSecret)

	router.Use(ExposeErrors(opts.ExposeErrors), RequestLogger(opts.Logger), SecurityHeaders())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found")
	})

	apiGroup := router.Group("/api")
	if opts.RateLimit.Enabled {
		apiGroup.Use(RateLimiter(opts.RateLimit.Requests, opts.RateLimit.Window))
	}

	apiGroup.GET("/health", Health)

	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/check-email", authHandler.CheckEmail)
		authGroup.GET("/profile", authMiddleware, authHandler.Profile)
		authGroup.PUT("/profile", authMiddleware, authHandler.UpdateProfile)
	}

	internshipGroup := apiGroup.Group("/internships", authMiddleware)
	{
		internshipGroup.GET("", internshipHandler.ListInternships)
		internshipGroup.GET("/available-domains", internshipHandler.AvailableDomains)
		internshipGroup.POST("/register-domain", internshipHandler.RegisterDomain)
		internshipGroup.GET("/:id", internshipHandler.GetInternship)
		internshipGroup.PATCH("/:id/status", internshipHandler.UpdateStatus)
		internshipGroup.GET("/:id/progress", internshipHandler.Progress)
		internshipGroup.GET("/:id/offer-letter", internshipHandler.OfferLetter)
	}

	taskGroup := apiGroup.Group("/tasks", authMiddleware)
	{
		taskGroup.GET("/internship/:internshipId", taskHandler.ListTasks)
		taskGroup.GET("/internship/:internshipId/overdue", taskHandler.Overdue)
		taskGroup.GET("/internship/:internshipId/upcoming", taskHandler.Upcoming)
		taskGroup.GET("/stats/:internshipId", taskHandler.Stats)

		// Slot-addressed submission log
		taskGroup.GET("/task-submissions/:internshipId", taskHandler.ListSubmissions)
		taskGroup.POST("/task-submissions/:internshipId/:taskNumber", taskHandler.UpsertSubmission)

		taskGroup.GET("/:taskId", taskHandler.GetTask)
		taskGroup.POST("/:taskId/submit", taskHandler.SubmitTask)
		taskGroup.PATCH("/:taskId/submission", taskHandler.UpdateSubmission)
	}

	certificateGroup := apiGroup.Group("/certificates")
	{
		// Public, for third parties checking a certificate
		certificateGroup.GET("/verify/:certificateNumber", certificateHandler.Verify)
		certificateGroup.GET("/download/:certificateNumber", certificateHandler.Download)

		protected := certificateGroup.Group("", authMiddleware)
		protected.GET("", certificateHandler.ListCertificates)
		protected.POST("/generate/:internshipId", certificateHandler.Generate)
		protected.GET("/eligibility/check", certificateHandler.EligibilityCheck)
		protected.GET("/eligibility/:internshipId", certificateHandler.Eligibility)
		protected.POST("/pay/:internshipId", certificateHandler.Pay)
		protected.GET("/:internshipId", certificateHandler.GetCertificate)
	}
	return nil
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} gin.H "Server is running"
// @Router /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"message":   "Internship API is running",
		"timestamp": time.Now().UTC(),
	})
}
