package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ScanStatusPending   = "pending"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"

	DefaultScanLanguage = "en"
	DefaultScanCountry  = "us"
)

type PlagiarismScan struct {
	ID                   uint           `gorm:"primaryKey;column:id" json:"id"`
	ThesisID             uint           `gorm:"column:thesis_id;index;not null" json:"thesis_id"`
	Status               string         `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	DocumentPath         string         `gorm:"column:document_path;type:varchar(500)" json:"document_path"`
	Language             string         `gorm:"column:language;type:varchar(10)" json:"language"`
	Country              string         `gorm:"column:country;type:varchar(10)" json:"country"`
	Score                *float64       `gorm:"column:score" json:"score"`
	SourceCounts         *int           `gorm:"column:source_counts" json:"source_counts"`
	TextWordCounts       *int           `gorm:"column:text_word_counts" json:"text_word_counts"`
	TotalPlagiarismWords *int           `gorm:"column:total_plagiarism_words" json:"total_plagiarism_words"`
	IdenticalWordCounts  *int           `gorm:"column:identical_word_counts" json:"identical_word_counts"`
	SimilarWordCounts    *int           `gorm:"column:similar_word_counts" json:"similar_word_counts"`
	RawResponse          datatypes.JSON `gorm:"column:raw_response" json:"raw_response,omitempty"`
	ErrorMessage         *string        `gorm:"column:error_message;type:text" json:"error_message"`
	ScannedAt            *time.Time     `gorm:"column:scanned_at" json:"scanned_at"`
	CreatedAt            time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"column:updated_at" json:"updated_at"`

	Thesis *Thesis `gorm:"foreignKey:ThesisID" json:"-"`
}

func (PlagiarismScan) TableName() string { return "plagiarism_scans" }

// IsTerminal reports whether the scan already reached completed or failed.
func (s *PlagiarismScan) IsTerminal() bool {
	return s.Status == ScanStatusCompleted || s.Status == ScanStatusFailed
}

func (s *PlagiarismScan) LanguageOrDefault() string {
	if s.Language == "" {
		return DefaultScanLanguage
	}
	return s.Language
}

func (s *PlagiarismScan) CountryOrDefault() string {
	if s.Country == "" {
		return DefaultScanCountry
	}
	return s.Country
}
