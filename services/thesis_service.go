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

// ChapterInput is an upload or an edit of one chapter. Nil fields are left unchanged on update.
type ChapterInput struct {
	Chapter  *string
	PostGrad *string
	File     *multipart.FileHeader
}

type ReviewInput struct {
	Status  string
	Remarks *string
}

type ThesisService struct {
	db       *gorm.DB
	storage  Storage
	notifier Notifier
}

func NewThesisService(db *gorm.DB, storage Storage, notifier Notifier) *ThesisService {
	if db == nil {
		db = config.DB
	}
	return &ThesisService{db: db, storage: storage, notifier: notifier}
}

// Get loads a chapter by id; callers check it belongs to the title they are looking at.
func (s *ThesisService) Get(ctx context.Context, id uint) (*models.Thesis, error) {
	var thesis models.Thesis
	if err := s.db.WithContext(ctx).First(&thesis, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &thesis, nil
}

func (s *ThesisService) List(ctx context.Context, title *models.ThesisTitle) ([]models.Thesis, error) {
	var chapters []models.Thesis
	err := s.db.WithContext(ctx).
		Where("thesis_title_id = ?", title.ID).
		Order("created_at ASC, id ASC").
		Find(&chapters).Error
	return chapters, err
}

// Create uploads a new chapter in pending status and tells the adviser.
func (s *ThesisService) Create(ctx context.Context, title *models.ThesisTitle, input ChapterInput) (*models.Thesis, error) {
	verr := &ValidationError{}
	if input.Chapter == nil || strings.TrimSpace(*input.Chapter) == "" {
		verr.Add("chapter", "The chapter field is required.")
	} else if len(strings.TrimSpace(*input.Chapter)) > 255 {
		verr.Add("chapter", "The chapter may not be greater than 255 characters.")
	}
	if err := utils.ValidatePDFUpload(input.File); err != nil {
		verr.Add("document", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	stored, err := s.put(title, input.File)
	if err != nil {
		return nil, err
	}
	thesis := &models.Thesis{
		ThesisTitleID: title.ID,
		Chapter:       utils.SanitizeInput(*input.Chapter),
		DocumentPath:  stored,
		Status:        models.ThesisStatusPending,
		PostGrad:      trimmedOrNil(input.PostGrad),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(thesis).Error; err != nil {
		s.remove(stored)
		return nil, err
	}
	s.notifySubmitted(ctx, title, thesis)
	return thesis, nil
}

// Update relabels a chapter and/or replaces its document. A new document puts the chapter
// back into pending and clears the previous review.
func (s *ThesisService) Update(ctx context.Context, title *models.ThesisTitle, thesis *models.Thesis, input ChapterInput) (*models.Thesis, error) {
	verr := &ValidationError{}
	if input.Chapter != nil && strings.TrimSpace(*input.Chapter) == "" {
		verr.Add("chapter", "The chapter field is required.")
	}
	if input.File != nil {
		if err := utils.ValidatePDFUpload(input.File); err != nil {
			verr.Add("document", err.Error())
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	previous := ""
	if input.File != nil {
		stored, err := s.put(title, input.File)
		if err != nil {
			return nil, err
		}
		previous = thesis.DocumentPath
		thesis.DocumentPath = stored
		thesis.Status = models.ThesisStatusPending
		thesis.Remarks = nil
		thesis.ReviewedAt = nil
	}
	if input.Chapter != nil {
		thesis.Chapter = utils.SanitizeInput(*input.Chapter)
	}
	if input.PostGrad != nil {
		thesis.PostGrad = trimmedOrNil(input.PostGrad)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(thesis).Error; err != nil {
		if input.File != nil {
			s.remove(thesis.DocumentPath)
		}
		return nil, err
	}
	if previous != "" && previous != thesis.DocumentPath {
		s.remove(previous)
	}
	if input.File != nil {
		s.notifySubmitted(ctx, title, thesis)
	}
	return thesis, nil
}

// Delete removes the stored document, then the chapter and its scans.
func (s *ThesisService) Delete(ctx context.Context, thesis *models.Thesis) error {
	if thesis.DocumentPath != "" {
		s.remove(thesis.DocumentPath)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thesis_id = ?", thesis.ID).Delete(&models.PlagiarismScan{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Thesis{}, thesis.ID).Error
	})
}

// Review records the adviser's decision and tells the owner.
func (s *ThesisService) Review(ctx context.Context, title *models.ThesisTitle, thesis *models.Thesis, input ReviewInput) (*models.Thesis, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if !models.IsValidThesisStatus(status) {
		return nil, NewValidationError("status", "The selected status is invalid.")
	}

	now := time.Now()
	thesis.Status = status
	thesis.Remarks = trimmedOrNil(input.Remarks)
	thesis.ReviewedAt = &now
	err := s.db.WithContext(ctx).Model(&models.Thesis{}).Where("id = ?", thesis.ID).Updates(map[string]interface{}{
		"status":      thesis.Status,
		"remarks":     thesis.Remarks,
		"reviewed_at": thesis.ReviewedAt,
		"updated_at":  now,
	}).Error
	if err != nil {
		return nil, err
	}
	thesis.UpdatedAt = now

	if s.notifier != nil {
		if err := s.loadPeople(ctx, title); err != nil {
			log.Printf("review notification skipped for thesis %d: %v", thesis.ID, err)
		} else {
			s.notifier.ChapterReviewed(title, thesis)
		}
	}
	return thesis, nil
}

func (s *ThesisService) put(title *models.ThesisTitle, file *multipart.FileHeader) (string, error) {
	if s.storage == nil {
		return "", errors.New("document storage is not configured")
	}
	stored, err := s.storage.Put(ChapterFolder(title.UserID, title.ID), file)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return stored, nil
}

func (s *ThesisService) remove(stored string) {
	if s.storage == nil || stored == "" {
		return
	}
	if err := s.storage.Delete(stored); err != nil {
		log.Printf("failed to delete stored document %s: %v", stored, err)
	}
}

func (s *ThesisService) notifySubmitted(ctx context.Context, title *models.ThesisTitle, thesis *models.Thesis) {
	if s.notifier == nil {
		return
	}
	if err := s.loadPeople(ctx, title); err != nil {
		log.Printf("submission notification skipped for thesis %d: %v", thesis.ID, err)
		return
	}
	s.notifier.ChapterSubmitted(title, thesis)
}

// loadPeople fills in the leader and adviser when the caller did not preload them.
func (s *ThesisService) loadPeople(ctx context.Context, title *models.ThesisTitle) error {
	db := s.db.WithContext(ctx)
	if title.Leader == nil {
		var leader models.User
		if err := db.First(&leader, title.UserID).Error; err != nil {
			return err
		}
		title.Leader = &leader
	}
	if title.Adviser == nil {
		var adviser models.User
		if err := db.First(&adviser, title.AdviserID).Error; err != nil {
			return err
		}
		title.Adviser = &adviser
	}
	return nil
}
