package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"
	"ethesis-api/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTitleLength = 500

// ThesisTitleInput is the writable part of a thesis title. Nil fields are left unchanged on update.
type ThesisTitleInput struct {
	Title             *string
	AdviserID         *uint
	MemberIDs         []uint
	MembersSet        bool
	ProposalDefenseAt *time.Time
	FinalDefenseAt    *time.Time
	CollegeName       *string
	Abstract          *multipart.FileHeader
	Endorsement       *multipart.FileHeader
}

type PanelInput struct {
	ChairmanID  *uint
	MemberOneID *uint
	MemberTwoID *uint
}

// TitleListing groups the titles a user can see by their relation to it.
type TitleListing struct {
	Owned   []models.ThesisTitle `json:"owned"`
	Member  []models.ThesisTitle `json:"member"`
	Advised []models.ThesisTitle `json:"advised"`
}

type ThesisTitleService struct {
	db      *gorm.DB
	auth    *AuthorizationService
	storage Storage
}

func NewThesisTitleService(db *gorm.DB, storage Storage) *ThesisTitleService {
	if db == nil {
		db = config.DB
	}
	return &ThesisTitleService{db: db, auth: NewAuthorizationService(db), storage: storage}
}

// Get loads a title with everything its detail view shows.
func (s *ThesisTitleService) Get(ctx context.Context, id uint) (*models.ThesisTitle, error) {
	var title models.ThesisTitle
	err := s.db.WithContext(ctx).
		Preload("Leader").
		Preload("Adviser").
		Preload("Members").
		Preload("Panel.Chairman").
		Preload("Panel.MemberOne").
		Preload("Panel.MemberTwo").
		Preload("Theses", func(tx *gorm.DB) *gorm.DB { return tx.Order("theses.created_at ASC, theses.id ASC") }).
		First(&title, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &title, nil
}

func (s *ThesisTitleService) ListForUser(ctx context.Context, user *models.User) (*TitleListing, error) {
	db := s.db.WithContext(ctx)
	listing := &TitleListing{
		Owned:   []models.ThesisTitle{},
		Member:  []models.ThesisTitle{},
		Advised: []models.ThesisTitle{},
	}
	if err := db.Preload("Adviser").Where("user_id = ?", user.ID).Order("created_at DESC, id DESC").Find(&listing.Owned).Error; err != nil {
		return nil, err
	}
	err := db.Preload("Leader").Preload("Adviser").
		Where("id IN (?)", db.Table("thesis_title_members").Select("thesis_title_id").Where("user_id = ?", user.ID)).
		Where("user_id <> ?", user.ID).
		Order("created_at DESC, id DESC").
		Find(&listing.Member).Error
	if err != nil {
		return nil, err
	}
	if err := db.Preload("Leader").Where("adviser_id = ?", user.ID).Order("updated_at DESC, id DESC").Find(&listing.Advised).Error; err != nil {
		return nil, err
	}
	return listing, nil
}

// Advisers lists users holding the Teacher role.
func (s *ThesisTitleService) Advisers(ctx context.Context) ([]models.User, error) {
	var advisers []models.User
	db := s.db.WithContext(ctx)
	err := db.Where("id IN (?)", db.Table("role_user").
		Select("role_user.user_id").
		Joins("JOIN roles ON roles.id = role_user.role_id").
		Where("roles.name = ?", models.RoleTeacher)).
		Order("name ASC").
		Find(&advisers).Error
	return advisers, err
}

// Create validates input and stores a new title owned by owner. No row is kept on failure.
func (s *ThesisTitleService) Create(ctx context.Context, owner *models.User, input ThesisTitleInput) (*models.ThesisTitle, error) {
	if owner == nil || owner.ID == 0 {
		return nil, ErrForbidden
	}
	verr := &ValidationError{}
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		verr.Add("title", "The title field is required.")
	}
	if input.AdviserID == nil || *input.AdviserID == 0 {
		verr.Add("adviser_id", "The adviser_id field is required.")
	}
	if err := s.validate(ctx, owner.ID, input, verr); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	title := &models.ThesisTitle{
		UserID:            owner.ID,
		AdviserID:         *input.AdviserID,
		Title:             utils.SanitizeInput(*input.Title),
		ProposalDefenseAt: input.ProposalDefenseAt,
		FinalDefenseAt:    input.FinalDefenseAt,
		CollegeName:       trimmedOrNil(input.CollegeName),
	}
	if title.CollegeName == nil {
		title.CollegeName = owner.AcademicProfile().CollegeName
	}

	var stored []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(title).Error; err != nil {
			return err
		}
		if err := replaceMembers(tx, title, input.MemberIDs); err != nil {
			return err
		}
		paths, err := s.storeTitleFiles(title, input)
		stored = paths
		if err != nil {
			return err
		}
		return tx.Model(title).Select("abstract_path", "endorsement_path").Updates(title).Error
	})
	if err != nil {
		s.deleteFiles(stored)
		return nil, err
	}
	return s.Get(ctx, title.ID)
}

// Update applies the non-nil fields of input; replaced documents are removed after the save.
func (s *ThesisTitleService) Update(ctx context.Context, title *models.ThesisTitle, input ThesisTitleInput) (*models.ThesisTitle, error) {
	verr := &ValidationError{}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		verr.Add("title", "The title field is required.")
	}
	if err := s.validate(ctx, title.UserID, input, verr); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var previous []string
	if input.Abstract != nil && title.AbstractPath != nil {
		previous = append(previous, *title.AbstractPath)
	}
	if input.Endorsement != nil && title.EndorsementPath != nil {
		previous = append(previous, *title.EndorsementPath)
	}

	if input.Title != nil {
		title.Title = utils.SanitizeInput(*input.Title)
	}
	if input.AdviserID != nil {
		title.AdviserID = *input.AdviserID
	}
	if input.ProposalDefenseAt != nil {
		title.ProposalDefenseAt = input.ProposalDefenseAt
	}
	if input.FinalDefenseAt != nil {
		title.FinalDefenseAt = input.FinalDefenseAt
	}
	if input.CollegeName != nil {
		title.CollegeName = trimmedOrNil(input.CollegeName)
	}

	var stored []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paths, err := s.storeTitleFiles(title, input)
		stored = paths
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(title).Error; err != nil {
			return err
		}
		if input.MembersSet {
			return replaceMembers(tx, title, input.MemberIDs)
		}
		return nil
	})
	if err != nil {
		s.deleteFiles(stored)
		return nil, err
	}
	s.deleteFiles(previous)
	return s.Get(ctx, title.ID)
}

// Delete removes stored documents first, then the title and everything hanging off it.
func (s *ThesisTitleService) Delete(ctx context.Context, title *models.ThesisTitle) error {
	var chapters []models.Thesis
	if err := s.db.WithContext(ctx).Where("thesis_title_id = ?", title.ID).Find(&chapters).Error; err != nil {
		return err
	}

	var files []string
	for _, p := range []*string{title.AbstractPath, title.EndorsementPath} {
		if p != nil {
			files = append(files, *p)
		}
	}
	for _, chapter := range chapters {
		if chapter.DocumentPath != "" {
			files = append(files, chapter.DocumentPath)
		}
	}
	s.deleteFiles(files)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chapterIDs := tx.Model(&models.Thesis{}).Select("id").Where("thesis_title_id = ?", title.ID)
		if err := tx.Where("thesis_id IN (?)", chapterIDs).Delete(&models.PlagiarismScan{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thesis_title_id = ?", title.ID).Delete(&models.Thesis{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thesis_title_id = ?", title.ID).Delete(&models.ThesisTitlePanel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(title).Association("Members").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.ThesisTitle{}, title.ID).Error
	})
}

// ReplaceMembers swaps the co-author list.
func (s *ThesisTitleService) ReplaceMembers(ctx context.Context, title *models.ThesisTitle, memberIDs []uint) (*models.ThesisTitle, error) {
	verr := &ValidationError{}
	if err := s.validateMembers(ctx, title.UserID, memberIDs, verr); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceMembers(tx, title, memberIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, title.ID)
}

// AssignPanel upserts the title's single panel row.
func (s *ThesisTitleService) AssignPanel(ctx context.Context, title *models.ThesisTitle, input PanelInput) (*models.ThesisTitle, error) {
	verr := &ValidationError{}
	seats := []struct {
		field string
		id    *uint
	}{
		{"chairman_id", input.ChairmanID},
		{"member_one_id", input.MemberOneID},
		{"member_two_id", input.MemberTwoID},
	}
	seen := make(map[uint]string)
	for _, seat := range seats {
		if seat.id == nil {
			continue
		}
		exists, err := s.userExists(ctx, *seat.id)
		if err != nil {
			return nil, err
		}
		if !exists {
			verr.Add(seat.field, fmt.Sprintf("The selected %s is invalid.", seat.field))
			continue
		}
		if other, dup := seen[*seat.id]; dup {
			verr.Add(seat.field, fmt.Sprintf("The %s must be different from %s.", seat.field, other))
			continue
		}
		seen[*seat.id] = seat.field
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	panel := &models.ThesisTitlePanel{
		ThesisTitleID: title.ID,
		ChairmanID:    input.ChairmanID,
		MemberOneID:   input.MemberOneID,
		MemberTwoID:   input.MemberTwoID,
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thesis_title_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"chairman_id", "member_one_id", "member_two_id", "updated_at"}),
	}).Create(panel).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, title.ID)
}

func (s *ThesisTitleService) validate(ctx context.Context, ownerID uint, input ThesisTitleInput, verr *ValidationError) error {
	if input.Title != nil && len(strings.TrimSpace(*input.Title)) > maxTitleLength {
		verr.Add("title", fmt.Sprintf("The title may not be greater than %d characters.", maxTitleLength))
	}
	if input.AdviserID != nil && *input.AdviserID != 0 {
		if err := s.validateAdviser(ctx, *input.AdviserID, verr); err != nil {
			return err
		}
	}
	if input.MembersSet || len(input.MemberIDs) > 0 {
		if err := s.validateMembers(ctx, ownerID, input.MemberIDs, verr); err != nil {
			return err
		}
	}
	if input.ProposalDefenseAt != nil && input.FinalDefenseAt != nil && input.FinalDefenseAt.Before(*input.ProposalDefenseAt) {
		verr.Add("final_defense_at", "The final defense must be after the proposal defense.")
	}
	for field, file := range map[string]*multipart.FileHeader{"abstract": input.Abstract, "endorsement": input.Endorsement} {
		if file == nil {
			continue
		}
		if err := utils.ValidatePDFUpload(file); err != nil {
			verr.Add(field, err.Error())
		}
	}
	return nil
}

// validateAdviser requires an existing user holding the Teacher role right now.
func (s *ThesisTitleService) validateAdviser(ctx context.Context, adviserID uint, verr *ValidationError) error {
	var adviser models.User
	res := s.db.WithContext(ctx).Preload("Roles").Limit(1).Find(&adviser, adviserID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		verr.Add("adviser_id", "The selected adviser_id is invalid.")
		return nil
	}
	isTeacher, err := s.auth.HasRole(ctx, &adviser, models.RoleTeacher)
	if err != nil {
		return err
	}
	if !isTeacher {
		verr.Add("adviser_id", "The selected adviser must be a teacher.")
	}
	return nil
}

func (s *ThesisTitleService) validateMembers(ctx context.Context, ownerID uint, memberIDs []uint, verr *ValidationError) error {
	ids := uniqueIDs(memberIDs)
	for _, id := range ids {
		if id == ownerID {
			verr.Add("member_ids", "The title owner cannot also be a member.")
			return nil
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(ids) {
		verr.Add("member_ids", "One or more selected members are invalid.")
	}
	return nil
}

func (s *ThesisTitleService) userExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// storeTitleFiles saves any uploaded documents and points title at them.
func (s *ThesisTitleService) storeTitleFiles(title *models.ThesisTitle, input ThesisTitleInput) ([]string, error) {
	var stored []string
	for _, item := range []struct {
		file   *multipart.FileHeader
		target **string
	}{
		{input.Abstract, &title.AbstractPath},
		{input.Endorsement, &title.EndorsementPath},
	} {
		if item.file == nil {
			continue
		}
		if s.storage == nil {
			return stored, errors.New("document storage is not configured")
		}
		p, err := s.storage.Put(TitleFolder(title.UserID, title.ID), item.file)
		if err != nil {
			return stored, fmt.Errorf("store document: %w", err)
		}
		stored = append(stored, p)
		*item.target = &p
	}
	return stored, nil
}

func (s *ThesisTitleService) deleteFiles(paths []string) {
	if s.storage == nil {
		return
	}
	for _, p := range paths {
		if err := s.storage.Delete(p); err != nil {
			log.Printf("failed to delete stored document %s: %v", p, err)
		}
	}
}

func replaceMembers(tx *gorm.DB, title *models.ThesisTitle, memberIDs []uint) error {
	ids := uniqueIDs(memberIDs)
	association := tx.Model(title).Association("Members")
	if len(ids) == 0 {
		return association.Clear()
	}
	var members []models.User
	if err := tx.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return err
	}
	return association.Replace(members)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
