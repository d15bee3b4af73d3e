package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-shelf/config"
	"paper-shelf/models"
)

// ErrNotFound wird geliefert, wenn es keinen Datensatz mit der ID gibt.
var ErrNotFound = errors.New("record not found")

// Open verbindet sich je nach DB_DRIVER mit Postgres oder SQLite.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	log.Info("Successfully connected to database.", zap.String("driver", cfg.DBDriver))
	return db, nil
}

// RecordStore ist der einzige Zugriff auf die papers-Tabelle. T ist models.Paper
// oder models.LegacyPaper, je nach Schema-Version.
type RecordStore[T any] struct {
	db       *gorm.DB
	editable []string
}

// NewPaperStore erstellt den Store für das Tag-Schema.
func NewPaperStore(db *gorm.DB) *RecordStore[models.Paper] {
	return &RecordStore[models.Paper]{
		db:       db,
		editable: []string{"title", "summary", "link", "pdf_path", "tags"},
	}
}

// NewLegacyPaperStore erstellt den Store für das Kategorie-Schema.
func NewLegacyPaperStore(db *gorm.DB) *RecordStore[models.LegacyPaper] {
	return &RecordStore[models.LegacyPaper]{
		db:       db,
		editable: []string{"title", "summary", "link", "pdf_path", "category", "subcategory"},
	}
}

// ListAll liefert alle Datensätze, älteste zuerst (bei gleichem Zeitpunkt nach ID).
func (s *RecordStore[T]) ListAll(ctx context.Context) ([]T, error) {
	var rows []T
	if err := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID lädt einen Datensatz oder liefert ErrNotFound.
func (s *RecordStore[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var row T
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Insert legt den Datensatz an; ID und CreatedAt werden von gorm gesetzt.
func (s *RecordStore[T]) Insert(ctx context.Context, row *T) error {
	return s.db.WithContext(ctx).Create(row).Error
}

// Update ersetzt alle editierbaren Spalten, auch mit NULL/leer.
func (s *RecordStore[T]) Update(ctx context.Context, id uint, row *T) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing T
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return tx.Model(&existing).Select(s.editable).Updates(row).Error
	})
}

// SetImportance setzt nur das Wichtig-Flag.
func (s *RecordStore[T]) SetImportance(ctx context.Context, id uint, important bool) error {
	var zero T
	res := s.db.WithContext(ctx).Model(&zero).Where("id = ?", id).Update("importance", important)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
