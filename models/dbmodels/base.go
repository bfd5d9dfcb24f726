package dbmodels

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains common columns for all tables owned by the push server
type Base struct {
	ID        uuid.UUID `json:"-" gorm:"type:uuid;primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the id and timestamps; gorm runs it for every row of a bulk insert
func (base *Base) BeforeCreate(tx *gorm.DB) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}

	now := time.Now().UTC()
	base.CreatedAt, base.UpdatedAt = now, now

	return nil
}
