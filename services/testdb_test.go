package services

import (
	"testing"

	"stormneighbor-server/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory database. Max open connections is pinned to 1
// because every sqlite connection gets its own :memory: database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Conversation{},
		&models.Message{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, first, last, email string) models.User {
	t.Helper()
	user := models.User{FirstName: first, LastName: last, Email: email}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}
