package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the sqlite database at path and creates any missing tables.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// AutoMigrate creates database tables
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Task{}, &Conversation{}, &Message{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
