package controllers

import (
	"net/http"

	"ethesis-api/models"

	"github.com/gin-gonic/gin"
)

// GetDashboard returns the student summary, the teacher summary, or both, depending on the
// viewer's roles.
func GetDashboard(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	isStudent, err := deps.Guard.IsStudent(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}
	isTeacher, err := deps.Guard.HasRole(ctx, user, models.RoleTeacher)
	if err != nil {
		respondError(c, err)
		return
	}

	data := gin.H{}
	if isStudent {
		summary, err := deps.Dashboard.StudentSummary(ctx, user)
		if err != nil {
			respondError(c, err)
			return
		}
		data["student"] = summary
	}
	if isTeacher {
		summary, err := deps.Dashboard.TeacherSummary(ctx, user)
		if err != nil {
			respondError(c, err)
			return
		}
		data["teacher"] = summary
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
