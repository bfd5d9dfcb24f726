package repository

import (
	"context"
	"time"

	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository for user_push_tokens
type PushTokenRepo struct {
	DB *gorm.DB
}

func (repo *PushTokenRepo) GetAllTokens(ctx context.Context) ([]dbmodels.PushToken, error) {
	var tokens []dbmodels.PushToken
	if err := repo.DB.WithContext(ctx).Select("user_id", "push_token").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (repo *PushTokenRepo) GetTokensForUser(ctx context.Context, userID string) ([]dbmodels.PushToken, error) {
	var tokens []dbmodels.PushToken
	if err := repo.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteTokens removes every row holding one of the tokens, across all users.
// Tokens already gone are not an error.
func (repo *PushTokenRepo) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := repo.DB.WithContext(ctx).Where("push_token IN ?", tokens).Delete(&dbmodels.PushToken{})
	return res.RowsAffected, res.Error
}

// AddOrUpdateToken registers the token for the user, touching updated_at if it already is
func (repo *PushTokenRepo) AddOrUpdateToken(ctx context.Context, userID string, token string) error {
	row := &dbmodels.PushToken{
		UserID:    userID,
		PushToken: token,
	}
	return repo.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "push_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": time.Now().UTC()}),
	}).Create(row).Error
}
