package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ethesis-api/config"
	"ethesis-api/models"
	"ethesis-api/utils"

	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// DirectoryAuthenticator verifies credentials against the directory.
type DirectoryAuthenticator interface {
	Login(ctx context.Context, email, password string) (*DirectoryLogin, error)
}

type LoginResult struct {
	Token   string                 `json:"token"`
	User    *models.User           `json:"user"`
	Roles   []string               `json:"roles"`
	Profile models.AcademicProfile `json:"profile"`
}

type AuthService struct {
	db        *gorm.DB
	directory DirectoryAuthenticator
}

func NewAuthService(db *gorm.DB, directory DirectoryAuthenticator) *AuthService {
	if db == nil {
		db = config.DB
	}
	if directory == nil {
		directory = NewDirectoryClient(config.Directory(), nil)
	}
	return &AuthService{db: db, directory: directory}
}

// Login authenticates through the directory, refreshes the local user and its roles, rotates
// the stored throwaway hash and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, NewValidationError("email", "The email must be a valid email address.")
	}
	if password == "" {
		return nil, NewValidationError("password", "The password field is required.")
	}

	login, err := s.directory.Login(ctx, email, password)
	if err != nil {
		var rejected *UpstreamRejectedError
		if errors.As(err, &rejected) && isCredentialRejection(rejected.StatusCode) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, rejected.Message)
		}
		if errors.Is(err, ErrDirectoryMalformedResponse) {
			return nil, &UpstreamUnavailableError{Service: directoryService, Err: err}
		}
		return nil, err
	}

	record := login.User
	if strings.TrimSpace(record.Email) == "" {
		record.Email = email
	}
	user, _, err := upsertDirectoryUser(ctx, s.db, record, userUpsertOptions{RotatePassword: true})
	if err != nil {
		return nil, err
	}

	roles := models.RoleNamesOf(user.Roles)
	token, err := utils.GenerateToken(user.ID, user.Email, roles)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &LoginResult{
		Token:   token,
		User:    user,
		Roles:   roles,
		Profile: user.AcademicProfile(),
	}, nil
}

func isCredentialRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity, http.StatusBadRequest:
		return true
	}
	return false
}
