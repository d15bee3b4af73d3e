package models

import (
	"time"

	"gorm.io/datatypes"
)

// MigrationRun protokolliert einen Lauf der Schema- bzw. Tag-Migration.
type MigrationRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name    string         `json:"name" gorm:"index;not null"` // z.B. "category_to_tags", "canonicalize_tags"
	Details datatypes.JSON `json:"details"`
}

// TableName gibt explizit den Tabellennamen an.
func (MigrationRun) TableName() string {
	return "migration_runs"
}
