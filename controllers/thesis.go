package controllers

import (
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"ethesis-api/models"
	"ethesis-api/services"

	"github.com/gin-gonic/gin"
)

type chapterRequest struct {
	Chapter  *string `form:"chapter" json:"chapter"`
	PostGrad *string `form:"post_grad" json:"post_grad"`
}

type reviewRequest struct {
	Status  string  `json:"status" binding:"required"`
	Remarks *string `json:"remarks"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

func ListTheses(c *gin.Context) {
	_, title, ok := loadViewableTitle(c)
	if !ok {
		return
	}
	chapters, err := deps.Theses.List(c.Request.Context(), title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chapters})
}

func GetThesis(c *gin.Context) {
	_, _, thesis, ok := loadViewableThesis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": thesis})
}

// UploadThesis stores a new chapter for the caller's own title
func UploadThesis(c *gin.Context) {
	_, title, ok := loadOwnedTitle(c)
	if !ok {
		return
	}
	var req chapterRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, err)
		return
	}

	thesis, err := deps.Theses.Create(c.Request.Context(), title, services.ChapterInput{
		Chapter:  req.Chapter,
		PostGrad: req.PostGrad,
		File:     optionalFile(c, "document"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Chapter uploaded", "data": thesis})
}

// UpdateThesis relabels a chapter or replaces its document
func UpdateThesis(c *gin.Context) {
	title, thesis, ok := loadOwnedThesis(c)
	if !ok {
		return
	}
	var req chapterRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, err)
		return
	}

	updated, err := deps.Theses.Update(c.Request.Context(), title, thesis, services.ChapterInput{
		Chapter:  req.Chapter,
		PostGrad: req.PostGrad,
		File:     optionalFile(c, "document"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chapter updated", "data": updated})
}

func DeleteThesis(c *gin.Context) {
	_, thesis, ok := loadOwnedThesis(c)
	if !ok {
		return
	}
	if err := deps.Theses.Delete(c.Request.Context(), thesis); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chapter deleted"})
}

// ReviewThesis records the adviser's decision on a chapter
func ReviewThesis(c *gin.Context) {
	user, title, ok := loadTitle(c)
	if !ok {
		return
	}
	thesis, ok := loadThesisParam(c)
	if !ok {
		return
	}
	if err := deps.Guard.EnsureAdviser(user.ID, title, thesis); err != nil {
		respondError(c, err)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	reviewed, err := deps.Theses.Review(c.Request.Context(), title, thesis, services.ReviewInput{
		Status:  req.Status,
		Remarks: req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chapter reviewed", "data": reviewed})
}

// DownloadThesis streams the chapter document to anyone who may view the title
func DownloadThesis(c *gin.Context) {
	_, title, thesis, ok := loadViewableThesis(c)
	if !ok {
		return
	}
	if deps.Storage == nil || thesis.DocumentPath == "" || !deps.Storage.Exists(thesis.DocumentPath) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
		return
	}

	file, err := deps.Storage.Open(thesis.DocumentPath)
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		respondError(c, err)
		return
	}

	filename := downloadFilename(title, thesis)
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=\"%s\"", filename),
	})
}

func downloadFilename(title *models.ThesisTitle, thesis *models.Thesis) string {
	base := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(thesis.Chapter, ""))
	if base == "" {
		base = fmt.Sprintf("thesis-%d-chapter-%d", title.ID, thesis.ID)
	}
	ext := path.Ext(thesis.DocumentPath)
	if ext == "" {
		ext = ".pdf"
	}
	return base + ext
}

func loadThesisParam(c *gin.Context) (*models.Thesis, bool) {
	id, ok := parseIDParam(c, "thesis_id")
	if !ok {
		return nil, false
	}
	thesis, err := deps.Theses.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return thesis, true
}

func loadViewableThesis(c *gin.Context) (*models.User, *models.ThesisTitle, *models.Thesis, bool) {
	user, title, ok := loadTitle(c)
	if !ok {
		return nil, nil, nil, false
	}
	thesis, ok := loadThesisParam(c)
	if !ok {
		return nil, nil, nil, false
	}
	if err := deps.Guard.EnsureViewAccess(c.Request.Context(), user, title, thesis); err != nil {
		respondError(c, err)
		return nil, nil, nil, false
	}
	return user, title, thesis, true
}

func loadOwnedThesis(c *gin.Context) (*models.ThesisTitle, *models.Thesis, bool) {
	user, title, ok := loadTitle(c)
	if !ok {
		return nil, nil, false
	}
	thesis, ok := loadThesisParam(c)
	if !ok {
		return nil, nil, false
	}
	if err := deps.Guard.EnsureOwnership(user.ID, title, thesis); err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return title, thesis, true
}
