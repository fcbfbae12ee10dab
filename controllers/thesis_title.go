package controllers

import (
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ethesis-api/models"
	"ethesis-api/services"

	"github.com/gin-gonic/gin"
)

type thesisTitleRequest struct {
	Title             *string `form:"title" json:"title"`
	AdviserID         *uint   `form:"adviser_id" json:"adviser_id"`
	MemberIDs         []uint  `form:"member_ids" json:"member_ids"`
	ProposalDefenseAt *string `form:"proposal_defense_at" json:"proposal_defense_at"`
	FinalDefenseAt    *string `form:"final_defense_at" json:"final_defense_at"`
	CollegeName       *string `form:"college_name" json:"college_name"`
}

type membersRequest struct {
	MemberIDs []uint `json:"member_ids"`
}

type panelRequest struct {
	ChairmanID  *uint `json:"chairman_id"`
	MemberOneID *uint `json:"member_one_id"`
	MemberTwoID *uint `json:"member_two_id"`
}

var defenseDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// ListThesisTitles returns the viewer's owned, member and advised titles
func ListThesisTitles(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	listing, err := deps.Titles.ListForUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": listing})
}

func CreateThesisTitle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	input, err := bindThesisTitleInput(c)
	if err != nil {
		respondError(c, err)
		return
	}

	title, err := deps.Titles.Create(c.Request.Context(), user, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Thesis title created", "data": title})
}

func GetThesisTitle(c *gin.Context) {
	_, title, ok := loadViewableTitle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": title})
}

func UpdateThesisTitle(c *gin.Context) {
	_, title, ok := loadOwnedTitle(c)
	if !ok {
		return
	}
	input, err := bindThesisTitleInput(c)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := deps.Titles.Update(c.Request.Context(), title, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Thesis title updated", "data": updated})
}

func DeleteThesisTitle(c *gin.Context) {
	_, title, ok := loadOwnedTitle(c)
	if !ok {
		return
	}
	if err := deps.Titles.Delete(c.Request.Context(), title); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Thesis title deleted"})
}

func ReplaceThesisTitleMembers(c *gin.Context) {
	_, title, ok := loadOwnedTitle(c)
	if !ok {
		return
	}
	var req membersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := deps.Titles.ReplaceMembers(c.Request.Context(), title, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
}

// AssignThesisTitlePanel sets the defense panel; only the adviser or a dean may do it
func AssignThesisTitlePanel(c *gin.Context) {
	user, title, ok := loadTitle(c)
	if !ok {
		return
	}
	if err := deps.Guard.EnsureAdviserOrDean(c.Request.Context(), user, title); err != nil {
		respondError(c, err)
		return
	}
	var req panelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := deps.Titles.AssignPanel(c.Request.Context(), title, services.PanelInput{
		ChairmanID:  req.ChairmanID,
		MemberOneID: req.MemberOneID,
		MemberTwoID: req.MemberTwoID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Panel assigned", "data": updated})
}

// GetAdvisers lists the users who can be picked as adviser
func GetAdvisers(c *gin.Context) {
	advisers, err := deps.Titles.Advisers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": advisers})
}

func loadTitle(c *gin.Context) (*models.User, *models.ThesisTitle, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, nil, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	title, err := deps.Titles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return user, title, true
}

func loadViewableTitle(c *gin.Context) (*models.User, *models.ThesisTitle, bool) {
	user, title, ok := loadTitle(c)
	if !ok {
		return nil, nil, false
	}
	if err := deps.Guard.EnsureViewAccess(c.Request.Context(), user, title, nil); err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return user, title, true
}

func loadOwnedTitle(c *gin.Context) (*models.User, *models.ThesisTitle, bool) {
	user, title, ok := loadTitle(c)
	if !ok {
		return nil, nil, false
	}
	if err := deps.Guard.EnsureOwnership(user.ID, title, nil); err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return user, title, true
}

func bindThesisTitleInput(c *gin.Context) (services.ThesisTitleInput, error) {
	var req thesisTitleRequest
	if err := c.ShouldBind(&req); err != nil {
		return services.ThesisTitleInput{}, err
	}

	input := services.ThesisTitleInput{
		Title:       req.Title,
		AdviserID:   req.AdviserID,
		MemberIDs:   req.MemberIDs,
		MembersSet:  req.MemberIDs != nil || formHas(c, "member_ids"),
		CollegeName: req.CollegeName,
		Abstract:    optionalFile(c, "abstract"),
		Endorsement: optionalFile(c, "endorsement"),
	}

	verr := &services.ValidationError{}
	input.ProposalDefenseAt = parseDefenseDate(req.ProposalDefenseAt, "proposal_defense_at", verr)
	input.FinalDefenseAt = parseDefenseDate(req.FinalDefenseAt, "final_defense_at", verr)
	return input, verr.OrNil()
}

func parseDefenseDate(raw *string, field string, verr *services.ValidationError) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	value := strings.TrimSpace(*raw)
	for _, layout := range defenseDateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return &t
		}
	}
	verr.Add(field, "The "+field+" is not a valid date.")
	return nil
}

func optionalFile(c *gin.Context, field string) *multipart.FileHeader {
	file, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return file
}

func formHas(c *gin.Context, key string) bool {
	if form := c.Request.MultipartForm; form != nil {
		if _, ok := form.Value[key]; ok {
			return true
		}
	}
	_, ok := c.Request.PostForm[key]
	return ok
}
