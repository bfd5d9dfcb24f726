package dbmodels

// Profile is the app's user profile row. Only the role is read here.
type Profile struct {
	ID   string `gorm:"primaryKey"`
	Role string
}

func (Profile) TableName() string {
	return "profiles"
}
