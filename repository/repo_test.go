package repository

import (
	"os"
	"testing"

	"github.com/loyaltyapp/push-server/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB connects to the DB_MOCK_* postgres and resets the schema
func newTestDB(t *testing.T) *gorm.DB {
	if os.Getenv("DB_MOCK_HOST") == "" {
		t.Skip("DB_MOCK_HOST is not set")
	}
	mockDb, err := database.NewConnection(&database.Config{
		Host:     os.Getenv("DB_MOCK_HOST"),
		Port:     os.Getenv("DB_MOCK_PORT"),
		Password: os.Getenv("DB_MOCK_PASS"),
		User:     os.Getenv("DB_MOCK_USER"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
		DBName:   "testing",
	})
	require.NoError(t, err)
	require.NoError(t, database.DropAndCreateTables(mockDb))
	return mockDb
}
