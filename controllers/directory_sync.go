package controllers

import (
	"errors"
	"net/http"

	"ethesis-api/services"

	"github.com/gin-gonic/gin"
)

type directorySyncRequest struct {
	PerPage int  `json:"per_page"`
	Page    int  `json:"page"`
	DryRun  bool `json:"dry_run"`
}

// TriggerDirectorySync runs a sync inside the request and returns its summary (Dean only)
func TriggerDirectorySync(c *gin.Context) {
	var req directorySyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}
	if req.Page < 0 {
		respondError(c, services.NewValidationError("page", "The page must be at least 1."))
		return
	}

	summary, run, err := deps.Sync.Run(c.Request.Context(), &services.DirectorySyncInput{
		PerPage:       req.PerPage,
		Page:          req.Page,
		DryRun:        req.DryRun,
		TriggerSource: "api",
		RecordRun:     true,
	})
	if err != nil {
		if errors.Is(err, services.ErrDirectorySyncAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "run": run})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": summary.Report(),
		"data":    summary,
		"run":     run,
	})
}

func ListDirectorySyncRuns(c *gin.Context) {
	limit, offset := paginationParams(c)
	runs, total, err := deps.SyncRuns.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": runs, "total": total})
}

func GetDirectorySyncRun(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	run, err := deps.SyncRuns.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}
