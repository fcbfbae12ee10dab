package controllers

import (
	"net/http"

	"ethesis-api/config"
	"ethesis-api/models"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the directory and returns a session token
func Login(c *gin.Context) {
	var req LoginRequest

	// Bind request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	result, err := deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Login successful",
		"token":      result.Token,
		"expires_in": config.JWTExpireHours() * 3600,
		"user":       result.User,
		"roles":      result.Roles,
		"profile":    result.Profile,
	})
}

// GetProfile returns current user profile
func GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"roles":   models.RoleNamesOf(user.Roles),
		"profile": user.AcademicProfile(),
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "eThesis API is running",
	})
}
