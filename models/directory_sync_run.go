package models

import (
	"time"
)

const (
	DirectorySyncStatusRunning = "running"
	DirectorySyncStatusSuccess = "success"
	DirectorySyncStatusFailed  = "failed"
)

type DirectorySyncRun struct {
	ID             uint       `json:"run_id" gorm:"primaryKey;autoIncrement"`
	TriggerSource  string     `json:"trigger_source" gorm:"type:varchar(64);not null"`
	DryRun         bool       `json:"dry_run" gorm:"column:dry_run;not null;default:false"`
	Status         string     `json:"status" gorm:"type:varchar(16);not null;default:'running'"`
	PerPage        int        `json:"per_page" gorm:"column:per_page;not null;default:100"`
	Page           *int       `json:"page,omitempty" gorm:"column:page"`
	ErrorMessage   *string    `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt      time.Time  `json:"started_at" gorm:"column:started_at;autoCreateTime"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" gorm:"column:finished_at"`
	Duration       *float64   `json:"duration_seconds,omitempty" gorm:"column:duration_seconds"`
	PagesFetched   uint       `json:"pages_fetched" gorm:"column:pages_fetched;not null;default:0"`
	ProcessedCount uint       `json:"processed_count" gorm:"column:processed_count;not null;default:0"`
	CreatedCount   uint       `json:"created_count" gorm:"column:created_count;not null;default:0"`
	UpdatedCount   uint       `json:"updated_count" gorm:"column:updated_count;not null;default:0"`
	SkippedCount   uint       `json:"skipped_count" gorm:"column:skipped_count;not null;default:0"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (DirectorySyncRun) TableName() string { return "directory_sync_runs" }
