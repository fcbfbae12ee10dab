package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ThesisStatusPending  = "pending"
	ThesisStatusApproved = "approved"
	ThesisStatusRejected = "rejected"
)

// Thesis is one uploaded chapter of a thesis title.
type Thesis struct {
	ID            uint       `gorm:"primaryKey;column:id" json:"id"`
	ThesisTitleID uint       `gorm:"column:thesis_title_id;index;not null" json:"thesis_title_id"`
	Chapter       string     `gorm:"column:chapter;type:varchar(255);not null" json:"chapter"`
	DocumentPath  string     `gorm:"column:document_path;type:varchar(500)" json:"document_path"`
	Status        string     `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	Remarks       *string    `gorm:"column:remarks;type:text" json:"remarks,omitempty"`
	PostGrad      *string    `gorm:"column:post_grad;type:varchar(50)" json:"post_grad,omitempty"`
	ReviewedAt    *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`

	ThesisTitle *ThesisTitle `gorm:"foreignKey:ThesisTitleID" json:"thesis_title,omitempty"`
}

func (Thesis) TableName() string {
	return "theses"
}

// AfterFind normalizes the stored status so every read path sees the closed enumeration.
func (t *Thesis) AfterFind(tx *gorm.DB) error {
	t.Status = ResolveStatus(t.Status)
	return nil
}

func IsValidThesisStatus(status string) bool {
	switch status {
	case ThesisStatusPending, ThesisStatusApproved, ThesisStatusRejected:
		return true
	default:
		return false
	}
}

// ResolveStatus returns status when it is exactly one of {pending, approved, rejected};
// anything else, including other spellings, reads as pending.
func ResolveStatus(status string) string {
	if IsValidThesisStatus(status) {
		return status
	}
	return ThesisStatusPending
}

// NeedsAttention is true for chapters the student still has to act on.
func (t *Thesis) NeedsAttention() bool {
	status := ResolveStatus(t.Status)
	return status == ThesisStatusPending || status == ThesisStatusRejected
}

// ActivityAt is the update time, or the creation time when no update was recorded.
func (t *Thesis) ActivityAt() time.Time {
	if !t.UpdatedAt.IsZero() {
		return t.UpdatedAt
	}
	return t.CreatedAt
}
