package models

import "time"

type ThesisTitle struct {
	ID                uint       `gorm:"primaryKey;column:id" json:"id"`
	UserID            uint       `gorm:"column:user_id;index;not null" json:"user_id"`
	AdviserID         uint       `gorm:"column:adviser_id;index;not null" json:"adviser_id"`
	Title             string     `gorm:"column:title;type:varchar(500);not null" json:"title"`
	AbstractPath      *string    `gorm:"column:abstract_path;type:varchar(500)" json:"abstract_path,omitempty"`
	EndorsementPath   *string    `gorm:"column:endorsement_path;type:varchar(500)" json:"endorsement_path,omitempty"`
	ProposalDefenseAt *time.Time `gorm:"column:proposal_defense_at" json:"proposal_defense_at,omitempty"`
	FinalDefenseAt    *time.Time `gorm:"column:final_defense_at" json:"final_defense_at,omitempty"`
	CollegeName       *string    `gorm:"column:college_name;type:varchar(255)" json:"college_name,omitempty"`
	CreatedAt         time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Leader  *User             `gorm:"foreignKey:UserID" json:"leader,omitempty"`
	Adviser *User             `gorm:"foreignKey:AdviserID" json:"adviser,omitempty"`
	Members []User            `gorm:"many2many:thesis_title_members;" json:"members,omitempty"`
	Panel   *ThesisTitlePanel `gorm:"foreignKey:ThesisTitleID" json:"panel,omitempty"`
	Theses  []Thesis          `gorm:"foreignKey:ThesisTitleID" json:"theses,omitempty"`
}

type ThesisTitlePanel struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	ThesisTitleID uint      `gorm:"column:thesis_title_id;uniqueIndex;not null" json:"thesis_title_id"`
	ChairmanID    *uint     `gorm:"column:chairman_id" json:"chairman_id"`
	MemberOneID   *uint     `gorm:"column:member_one_id" json:"member_one_id"`
	MemberTwoID   *uint     `gorm:"column:member_two_id" json:"member_two_id"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`

	Chairman  *User `gorm:"foreignKey:ChairmanID" json:"chairman,omitempty"`
	MemberOne *User `gorm:"foreignKey:MemberOneID" json:"member_one,omitempty"`
	MemberTwo *User `gorm:"foreignKey:MemberTwoID" json:"member_two,omitempty"`
}

// TableName overrides
func (ThesisTitle) TableName() string {
	return "thesis_titles"
}

func (ThesisTitlePanel) TableName() string {
	return "thesis_title_panels"
}

// HasMember reports whether userID is among the loaded co-authors.
func (t *ThesisTitle) HasMember(userID uint) bool {
	for _, member := range t.Members {
		if member.ID == userID {
			return true
		}
	}
	return false
}

// DefenseMilestones returns the proposal and final defense dates that are set, in that order.
func (t *ThesisTitle) DefenseMilestones() []DefenseMilestone {
	milestones := make([]DefenseMilestone, 0, 2)
	if t.ProposalDefenseAt != nil {
		milestones = append(milestones, DefenseMilestone{Kind: MilestoneProposalDefense, At: *t.ProposalDefenseAt})
	}
	if t.FinalDefenseAt != nil {
		milestones = append(milestones, DefenseMilestone{Kind: MilestoneFinalDefense, At: *t.FinalDefenseAt})
	}
	return milestones
}

const (
	MilestoneProposalDefense = "proposal_defense"
	MilestoneFinalDefense    = "final_defense"
)

type DefenseMilestone struct {
	Kind string
	At   time.Time
}

// Includes reports whether userID sits on the panel in any seat.
func (p *ThesisTitlePanel) Includes(userID uint) bool {
	if p == nil {
		return false
	}
	for _, seat := range []*uint{p.ChairmanID, p.MemberOneID, p.MemberTwoID} {
		if seat != nil && *seat == userID {
			return true
		}
	}
	return false
}
