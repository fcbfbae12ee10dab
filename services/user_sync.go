package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ethesis-api/models"
	"ethesis-api/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDirectoryUserInvalidEmail = errors.New("directory user has no valid email")

type userUpsertOptions struct {
	// RotatePassword replaces the stored hash with a fresh random one (login flow).
	RotatePassword bool
}

// upsertDirectoryUser creates or updates the local copy of a directory user and replaces its
// role set, all inside one transaction.
func upsertDirectoryUser(ctx context.Context, db *gorm.DB, record DirectoryUser, opts userUpsertOptions) (*models.User, bool, error) {
	email := utils.NormalizeEmail(record.Email)
	if email == "" {
		return nil, false, ErrDirectoryUserInvalidEmail
	}
	name := utils.SanitizeInput(record.Name)
	roleNames := models.NormalizeRoleNames(record.Roles)

	var user models.User
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("email = ?", email).Limit(1).Find(&user)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			hash, err := utils.RandomPasswordHash()
			if err != nil {
				return fmt.Errorf("generate credential: %w", err)
			}
			user = models.User{
				Name:     name,
				Email:    email,
				Password: hash,
			}
			if user.Name == "" {
				user.Name = strings.SplitN(email, "@", 2)[0]
			}
			if len(record.Profile) > 0 {
				user.Profile = datatypes.JSON(record.Profile)
			}
			if err := tx.Omit(clause.Associations).Create(&user).Error; err != nil {
				return err
			}
			created = true
		} else {
			updates := map[string]interface{}{}
			if name != "" && name != user.Name {
				updates["name"] = name
			}
			if len(record.Profile) > 0 {
				updates["profile"] = datatypes.JSON(record.Profile)
			}
			if opts.RotatePassword {
				hash, err := utils.RandomPasswordHash()
				if err != nil {
					return fmt.Errorf("generate credential: %w", err)
				}
				updates["password"] = hash
			}
			if len(updates) > 0 {
				if err := tx.Model(&user).Updates(updates).Error; err != nil {
					return err
				}
			}
		}

		roles, err := ensureRoles(tx, roleNames)
		if err != nil {
			return err
		}
		association := tx.Model(&user).Association("Roles")
		if len(roles) == 0 {
			err = association.Clear()
		} else {
			err = association.Replace(roles)
		}
		if err != nil {
			return fmt.Errorf("sync roles for %s: %w", email, err)
		}
		user.Roles = roles
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

// ensureRoles upserts the named roles and returns them in the order given.
func ensureRoles(tx *gorm.DB, names []string) ([]models.Role, error) {
	if len(names) == 0 {
		return []models.Role{}, nil
	}

	incoming := make([]models.Role, 0, len(names))
	for _, name := range names {
		incoming = append(incoming, models.Role{Name: name})
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&incoming).Error
	if err != nil {
		return nil, fmt.Errorf("upsert roles: %w", err)
	}

	var stored []models.Role
	if err := tx.Where("name IN ?", names).Find(&stored).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]models.Role, len(stored))
	for _, role := range stored {
		byName[role.Name] = role
	}
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		if role, ok := byName[name]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}
