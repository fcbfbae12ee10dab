package services

import (
	"context"
	"fmt"

	"ethesis-api/config"
	"ethesis-api/models"

	"gorm.io/gorm"
)

// AuthorizationService answers "may this user touch this thesis title" questions.
type AuthorizationService struct {
	db *gorm.DB
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	if db == nil {
		db = config.DB
	}
	return &AuthorizationService{db: db}
}

// EnsureOwnership allows only the title's leader. When thesis is given it must belong to title.
func (s *AuthorizationService) EnsureOwnership(requesterID uint, title *models.ThesisTitle, thesis *models.Thesis) error {
	if title == nil {
		return ErrNotFound
	}
	if requesterID == 0 || requesterID != title.UserID {
		return ErrForbidden
	}
	return ensureChapterOf(title, thesis)
}

// EnsureViewAccess allows the owner, members, the adviser, panel members and deans to read a title.
func (s *AuthorizationService) EnsureViewAccess(ctx context.Context, requester *models.User, title *models.ThesisTitle, thesis *models.Thesis) error {
	if title == nil {
		return ErrNotFound
	}
	if requester == nil || requester.ID == 0 {
		return ErrForbidden
	}
	if err := ensureChapterOf(title, thesis); err != nil {
		return err
	}
	if requester.ID == title.UserID || requester.ID == title.AdviserID {
		return nil
	}

	member, err := s.isMember(ctx, requester.ID, title)
	if err != nil {
		return err
	}
	if member {
		return nil
	}

	onPanel, err := s.isPanelist(ctx, requester.ID, title)
	if err != nil {
		return err
	}
	if onPanel {
		return nil
	}

	isDean, err := s.HasRole(ctx, requester, models.RoleDean)
	if err != nil {
		return err
	}
	if isDean {
		return nil
	}
	return ErrForbidden
}

// EnsureAdviser allows only the title's adviser (chapter review).
func (s *AuthorizationService) EnsureAdviser(requesterID uint, title *models.ThesisTitle, thesis *models.Thesis) error {
	if title == nil {
		return ErrNotFound
	}
	if requesterID == 0 || requesterID != title.AdviserID {
		return ErrForbidden
	}
	return ensureChapterOf(title, thesis)
}

// EnsureAdviserOrDean is used for panel assignment.
func (s *AuthorizationService) EnsureAdviserOrDean(ctx context.Context, requester *models.User, title *models.ThesisTitle) error {
	if title == nil {
		return ErrNotFound
	}
	if requester == nil || requester.ID == 0 {
		return ErrForbidden
	}
	if requester.ID == title.AdviserID {
		return nil
	}
	isDean, err := s.HasRole(ctx, requester, models.RoleDean)
	if err != nil {
		return err
	}
	if !isDean {
		return ErrForbidden
	}
	return nil
}

// RoleNames returns the user's role names de-duplicated in first-seen order.
// Eagerly loaded roles are used when present, otherwise they are queried.
func (s *AuthorizationService) RoleNames(ctx context.Context, user *models.User) ([]string, error) {
	if user == nil {
		return nil, nil
	}
	if user.Roles != nil {
		return models.RoleNamesOf(user.Roles), nil
	}
	if user.ID == 0 {
		return []string{}, nil
	}

	var names []string
	err := s.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN role_user ON role_user.role_id = roles.id").
		Where("role_user.user_id = ?", user.ID).
		Order("roles.id ASC").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", user.ID, err)
	}
	return models.UniqueRoleNames(names), nil
}

func (s *AuthorizationService) HasRole(ctx context.Context, user *models.User, role string) (bool, error) {
	names, err := s.RoleNames(ctx, user)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == role {
			return true, nil
		}
	}
	return false, nil
}

// IsStudent is true for explicit students and for users holding neither Teacher nor Student.
func (s *AuthorizationService) IsStudent(ctx context.Context, user *models.User) (bool, error) {
	names, err := s.RoleNames(ctx, user)
	if err != nil {
		return false, err
	}
	return isStudentRoleSet(names), nil
}

func isStudentRoleSet(names []string) bool {
	var teacher, student bool
	for _, name := range names {
		switch name {
		case models.RoleTeacher:
			teacher = true
		case models.RoleStudent:
			student = true
		}
	}
	return student || !teacher
}

func ensureChapterOf(title *models.ThesisTitle, thesis *models.Thesis) error {
	if thesis != nil && thesis.ThesisTitleID != title.ID {
		return ErrNotFound
	}
	return nil
}

func (s *AuthorizationService) isMember(ctx context.Context, userID uint, title *models.ThesisTitle) (bool, error) {
	if title.Members != nil {
		return title.HasMember(userID), nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Table("thesis_title_members").
		Where("thesis_title_id = ? AND user_id = ?", title.ID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *AuthorizationService) isPanelist(ctx context.Context, userID uint, title *models.ThesisTitle) (bool, error) {
	if title.Panel != nil {
		return title.Panel.Includes(userID), nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ThesisTitlePanel{}).
		Where("thesis_title_id = ?", title.ID).
		Where("chairman_id = ? OR member_one_id = ? OR member_two_id = ?", userID, userID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
