package routes

import (
	"net/http"

	"ethesis-api/controllers"
	"ethesis-api/middleware"
	"ethesis-api/models"
	"ethesis-api/monitor"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", controllers.Login)
			public.GET("/health", controllers.Health)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", controllers.GetProfile)
			protected.GET("/dashboard", controllers.GetDashboard)
			protected.GET("/advisers", controllers.GetAdvisers)

			titles := protected.Group("/thesis-titles")
			{
				titles.GET("", controllers.ListThesisTitles)
				titles.POST("", controllers.CreateThesisTitle)
				titles.GET("/:id", controllers.GetThesisTitle)
				titles.PUT("/:id", controllers.UpdateThesisTitle)
				titles.POST("/:id", controllers.UpdateThesisTitle) // multipart clients that cannot PUT
				titles.DELETE("/:id", controllers.DeleteThesisTitle)
				titles.PUT("/:id/members", controllers.ReplaceThesisTitleMembers)
				titles.PUT("/:id/panel", controllers.AssignThesisTitlePanel)

				// Chapters
				titles.GET("/:id/theses", controllers.ListTheses)
				titles.POST("/:id/theses", controllers.UploadThesis)
				titles.GET("/:id/theses/:thesis_id", controllers.GetThesis)
				titles.PUT("/:id/theses/:thesis_id", controllers.UpdateThesis)
				titles.POST("/:id/theses/:thesis_id", controllers.UpdateThesis)
				titles.DELETE("/:id/theses/:thesis_id", controllers.DeleteThesis)
				titles.GET("/:id/theses/:thesis_id/download", controllers.DownloadThesis)
				titles.PATCH("/:id/theses/:thesis_id/review", controllers.ReviewThesis)

				// Plagiarism scans
				titles.GET("/:id/theses/:thesis_id/plagiarism-scans", controllers.ListPlagiarismScans)
				titles.POST("/:id/theses/:thesis_id/plagiarism-scans", controllers.CreatePlagiarismScan)
			}

			// Directory sync (deans only)
			directory := protected.Group("/directory-sync", middleware.RequireRole(models.RoleDean))
			{
				directory.POST("", controllers.TriggerDirectorySync)
				directory.GET("/runs", controllers.ListDirectorySyncRuns)
				directory.GET("/runs/:id", controllers.GetDirectorySyncRun)
			}

			// Operator status and log tail (deans only)
			monitor.RegisterRoutes(protected.Group("/monitor", middleware.RequireRole(models.RoleDean)))
		}
	}

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})
}
