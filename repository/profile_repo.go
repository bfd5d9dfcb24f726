package repository

import (
	"context"
	"errors"

	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/gorm"
)

// Repository for the read-only profiles table
type ProfileRepo struct {
	DB *gorm.DB
}

// GetRole returns the user's role, or "" when the user has no profile
func (repo *ProfileRepo) GetRole(ctx context.Context, userID string) (string, error) {
	var profile dbmodels.Profile
	err := repo.DB.WithContext(ctx).Select("id", "role").Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}
