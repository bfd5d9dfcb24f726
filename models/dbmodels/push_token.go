package dbmodels

// PushToken is a device registration, one row per (user, token) pair
type PushToken struct {
	Base
	UserID    string `json:"user_id" gorm:"index:user_push_token_index,unique;not null"`
	PushToken string `json:"push_token" gorm:"index:user_push_token_index,unique;index;not null"`
}

func (PushToken) TableName() string {
	return "user_push_tokens"
}
