package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ethesis-api/config"
	"ethesis-api/models"

	"gorm.io/gorm"
)

var (
	ErrDirectorySyncRunNotFound = errors.New("directory sync run not found")
)

type DirectorySyncRunService struct {
	db *gorm.DB
}

func NewDirectorySyncRunService(db *gorm.DB) *DirectorySyncRunService {
	if db == nil {
		db = config.DB
	}
	return &DirectorySyncRunService{db: db}
}

func (s *DirectorySyncRunService) Start(ctx context.Context, trigger string, perPage int, page *int) (*models.DirectorySyncRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.DirectorySyncRun{
		TriggerSource: trigger,
		Status:        models.DirectorySyncStatusRunning,
		PerPage:       perPage,
		Page:          page,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (s *DirectorySyncRunService) MarkSuccess(ctx context.Context, runID uint, summary *DirectorySyncSummary, duration float64) error {
	return s.finish(ctx, runID, models.DirectorySyncStatusSuccess, summary, nil, duration)
}

func (s *DirectorySyncRunService) MarkFailure(ctx context.Context, runID uint, summary *DirectorySyncSummary, err error, duration float64) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(ctx, runID, models.DirectorySyncStatusFailed, summary, &msg, duration)
}

func (s *DirectorySyncRunService) finish(ctx context.Context, runID uint, status string, summary *DirectorySyncSummary, errMsg *string, duration float64) error {
	updates := map[string]interface{}{
		"status":           status,
		"finished_at":      time.Now(),
		"duration_seconds": duration,
	}
	if summary != nil {
		updates["pages_fetched"] = summary.PagesFetched
		updates["processed_count"] = summary.Processed
		updates["created_count"] = summary.Created
		updates["updated_count"] = summary.Updated
		updates["skipped_count"] = summary.Skipped
	}
	if errMsg != nil {
		if len(*errMsg) > 2000 {
			updates["error_message"] = fmt.Sprintf("%s...", (*errMsg)[:1997])
		} else {
			updates["error_message"] = *errMsg
		}
	}
	res := s.db.WithContext(persistentContext(ctx)).Model(&models.DirectorySyncRun{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDirectorySyncRunNotFound
	}
	return nil
}

func (s *DirectorySyncRunService) GetByID(ctx context.Context, id uint) (*models.DirectorySyncRun, error) {
	var run models.DirectorySyncRun
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDirectorySyncRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetRunning returns the newest run still marked running, or nil.
func (s *DirectorySyncRunService) GetRunning(ctx context.Context) (*models.DirectorySyncRun, error) {
	var run models.DirectorySyncRun
	err := s.db.WithContext(ctx).Where("status = ?", models.DirectorySyncStatusRunning).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (s *DirectorySyncRunService) List(ctx context.Context, limit, offset int) ([]models.DirectorySyncRun, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.DirectorySyncRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.DirectorySyncRun
	err := s.db.WithContext(ctx).Order("started_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
