package services

import (
	"context"
	"fmt"
	"strings"

	"ethesis-api/config"
	"ethesis-api/models"
	"ethesis-api/utils"

	"gorm.io/gorm"
)

// MissingDocument is a stored path the database references but storage no longer holds.
type MissingDocument struct {
	ThesisTitleID uint   `json:"thesis_title_id"`
	ThesisID      *uint  `json:"thesis_id,omitempty"`
	Kind          string `json:"kind"`
	Path          string `json:"path"`
}

type StorageAuditReport struct {
	Titles         int
	Documents      int
	FoldersCreated int
	Missing        []MissingDocument
}

func (r *StorageAuditReport) Report() string {
	return fmt.Sprintf("titles=%d documents=%d missing=%d folders_created=%d",
		r.Titles, r.Documents, len(r.Missing), r.FoldersCreated)
}

type CredentialRotationReport struct {
	Rotated int
	Skipped int
	Failed  []string
}

// MaintenanceService holds the offline housekeeping jobs run from the command line.
type MaintenanceService struct {
	db      *gorm.DB
	storage *LocalStorage
}

func NewMaintenanceService(db *gorm.DB, storage *LocalStorage) *MaintenanceService {
	if db == nil {
		db = config.DB
	}
	if storage == nil {
		storage = NewLocalStorage(config.Storage())
	}
	return &MaintenanceService{db: db, storage: storage}
}

// AuditStorage checks every stored document of the selected titles (all when titleIDs is
// empty) and, when ensureFolders is set, creates missing per-title folders.
func (s *MaintenanceService) AuditStorage(ctx context.Context, titleIDs []uint, ensureFolders bool) (*StorageAuditReport, error) {
	query := s.db.WithContext(ctx).Preload("Theses").Order("id ASC")
	if len(titleIDs) > 0 {
		query = query.Where("id IN ?", titleIDs)
	}
	var titles []models.ThesisTitle
	if err := query.Find(&titles).Error; err != nil {
		return nil, err
	}

	report := &StorageAuditReport{Titles: len(titles), Missing: []MissingDocument{}}
	for _, title := range titles {
		if ensureFolders {
			for _, folder := range []string{TitleFolder(title.UserID, title.ID), ChapterFolder(title.UserID, title.ID)} {
				created, err := s.storage.EnsureFolder(folder)
				if err != nil {
					return report, fmt.Errorf("ensure folder %s: %w", folder, err)
				}
				if created {
					report.FoldersCreated++
				}
			}
		}

		check := func(kind, stored string, thesisID *uint) {
			if strings.TrimSpace(stored) == "" {
				return
			}
			report.Documents++
			if !s.storage.Exists(stored) {
				report.Missing = append(report.Missing, MissingDocument{
					ThesisTitleID: title.ID,
					ThesisID:      thesisID,
					Kind:          kind,
					Path:          stored,
				})
			}
		}
		if title.AbstractPath != nil {
			check("abstract", *title.AbstractPath, nil)
		}
		if title.EndorsementPath != nil {
			check("endorsement", *title.EndorsementPath, nil)
		}
		for i := range title.Theses {
			thesis := title.Theses[i]
			check("chapter", thesis.DocumentPath, &thesis.ID)
		}
	}
	return report, nil
}

// RotateCredentials replaces local password hashes with fresh throwaway hashes. Without all,
// only values that are not bcrypt hashes are touched.
func (s *MaintenanceService) RotateCredentials(ctx context.Context, all bool) (*CredentialRotationReport, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "email", "password").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	report := &CredentialRotationReport{}
	for _, user := range users {
		if !all && strings.HasPrefix(user.Password, "$2") {
			report.Skipped++
			continue
		}
		hash, err := utils.RandomPasswordHash()
		if err == nil {
			err = s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("password", hash).Error
		}
		if err != nil {
			report.Failed = append(report.Failed, fmt.Sprintf("%s (%v)", user.Email, err))
			continue
		}
		report.Rotated++
	}
	return report, nil
}
