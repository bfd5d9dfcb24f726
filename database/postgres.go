package database

import (
	"fmt"

	"github.com/loyaltyapp/push-server/models/dbmodels"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     string
	Password string
	User     string
	DBName   string
	SSLMode  string
}

func NewConnection(config *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return db, err
	}
	return db, nil
}

// DropAndCreateTables resets the schema for repository tests. profiles is owned
// by the app's auth schema in production and only created here.
func DropAndCreateTables(db *gorm.DB) error {
	tables := []interface{}{&dbmodels.PushToken{}, &dbmodels.PushTicket{}, &dbmodels.Profile{}}
	if err := db.Migrator().DropTable(tables...); err != nil {
		return err
	}
	return db.Migrator().CreateTable(tables...)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&dbmodels.PushToken{}, &dbmodels.PushTicket{})
}
