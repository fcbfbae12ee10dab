package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleTeacher = "Teacher"
	RoleStudent = "Student"
	RoleDean    = "Dean"
)

type User struct {
	ID        uint           `gorm:"primaryKey;column:id" json:"id"`
	Name      string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email     string         `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"column:password;type:varchar(255);not null" json:"-"`
	Profile   datatypes.JSON `gorm:"column:profile" json:"-"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Roles []Role `gorm:"many2many:role_user;" json:"roles,omitempty"`
}

type Role struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides
func (User) TableName() string {
	return "users"
}

func (Role) TableName() string {
	return "roles"
}

// AcademicProfile parses the directory-reported profile stored on the user.
func (u *User) AcademicProfile() AcademicProfile {
	return ParseAcademicProfile(u.Profile)
}
