package controllers

import (
	"errors"
	"log"
	"net/http"

	"ethesis-api/services"

	"github.com/gin-gonic/gin"
)

type scanRequest struct {
	Language string `json:"language"`
	Country  string `json:"country"`
}

// CreatePlagiarismScan records a pending scan of the chapter's current document and queues it.
// The owner and the adviser may request scans.
func CreatePlagiarismScan(c *gin.Context) {
	user, title, ok := loadTitle(c)
	if !ok {
		return
	}
	thesis, ok := loadThesisParam(c)
	if !ok {
		return
	}
	if err := deps.Guard.EnsureOwnership(user.ID, title, thesis); err != nil {
		if !errors.Is(err, services.ErrForbidden) {
			respondError(c, err)
			return
		}
		if err := deps.Guard.EnsureAdviser(user.ID, title, thesis); err != nil {
			respondError(c, err)
			return
		}
	}

	var req scanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	scan, err := deps.Plagiarism.Create(c.Request.Context(), thesis, req.Language, req.Country)
	if err != nil {
		respondError(c, err)
		return
	}

	if deps.Scans != nil {
		if err := deps.Scans.Enqueue(scan.ID); err != nil {
			// the scan stays pending and can be picked up on the next start
			log.Printf("plagiarism scan %d not queued: %v", scan.ID, err)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Plagiarism scan queued", "data": scan})
}

func ListPlagiarismScans(c *gin.Context) {
	_, _, thesis, ok := loadViewableThesis(c)
	if !ok {
		return
	}
	scans, err := deps.Plagiarism.List(c.Request.Context(), thesis.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": scans})
}
