// Package storagetest stellt eine frische SQLite-Datenbank für Tests bereit.
package storagetest

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB öffnet eine leere SQLite-Datei im Temp-Verzeichnis des Tests.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "papers.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Migrated ist DB plus AutoMigrate der übergebenen Modelle.
func Migrated(tb testing.TB, models ...any) *gorm.DB {
	tb.Helper()
	db := DB(tb)
	if err := db.AutoMigrate(models...); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	return db
}
