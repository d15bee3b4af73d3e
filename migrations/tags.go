// Package migrations überführt die papers-Tabelle vom Kategorie-Schema ins Tag-Schema.
package migrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"paper-shelf/models"
	"paper-shelf/services"
)

const (
	papersTable  = "papers"
	rebuildTable = "papers_new"

	RunCategoryToTags   = "category_to_tags"
	RunCanonicalizeTags = "canonicalize_tags"
)

// rebuiltPaper ist das Zielschema während des Umbaus.
type rebuiltPaper struct {
	models.Paper
}

func (rebuiltPaper) TableName() string { return rebuildTable }

// Spalten des Zielschemas; für jede die Quellspalten in Prioritätsreihenfolge.
// "create_at" stammt aus sehr alten Datenbanken.
var rebuildColumns = []struct {
	target  string
	sources []string
}{
	{"id", []string{"id"}},
	{"created_at", []string{"created_at", "create_at"}},
	{"updated_at", []string{"updated_at"}},
	{"title", []string{"title"}},
	{"summary", []string{"summary"}},
	{"link", []string{"link"}},
	{"pdf_path", []string{"pdf_path"}},
	{"tags", []string{"tags"}},
	{"importance", []string{"importance"}},
}

// Migrator führt die Schema-Migrationen aus.
type Migrator struct {
	DB     *gorm.DB
	Logger *zap.Logger
	// BeforeContract läuft nach der Erkennung und vor jeder Änderung, z.B. für ein Backup.
	BeforeContract func(ctx context.Context) error
}

// NewMigrator erstellt einen Migrator.
func NewMigrator(db *gorm.DB, logger *zap.Logger) *Migrator {
	return &Migrator{DB: db, Logger: logger}
}

// CategoryResult fasst einen Lauf von MigrateCategoriesToTags zusammen.
type CategoryResult struct {
	Skipped         bool `json:"skipped"`
	AddedTagsColumn bool `json:"added_tags_column"`
	Converted       int  `json:"converted"`
	Rebuilt         bool `json:"rebuilt"`
}

// CanonicalizeResult fasst einen Lauf von CanonicalizeTags zusammen.
type CanonicalizeResult struct {
	Skipped          bool `json:"skipped"`
	Scanned          int  `json:"scanned"`
	Converted        int  `json:"converted"`
	AlreadyCanonical int  `json:"already_canonical"`
}

// NeedsCategoryMigration meldet, ob die Tabelle noch category/subcategory-Spalten hat.
func NeedsCategoryMigration(db *gorm.DB) bool {
	mig := db.Migrator()
	return mig.HasColumn(papersTable, "category") || mig.HasColumn(papersTable, "subcategory")
}

// LegacyTags bildet (Kategorie, Unterkategorie) auf die kommagetrennte Tag-Liste ab.
// Leere Teile entfallen; ohne Teile ergibt sich NULL.
func LegacyTags(category, subcategory *string) *string {
	var parts []string
	for _, v := range []*string{category, subcategory} {
		if v != nil && strings.TrimSpace(*v) != "" {
			parts = append(parts, strings.TrimSpace(*v))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, ",")
	return &s
}

type legacyRow struct {
	ID          uint
	Category    *string
	Subcategory *string
}

// MigrateCategoriesToTags: erkennen, tags-Spalte anlegen, Werte übertragen, Tabelle ohne
// category/subcategory neu aufbauen. Übertragen und Umbau laufen in einer Transaktion.
// Mehrfaches Ausführen ist unschädlich.
func (m *Migrator) MigrateCategoriesToTags(ctx context.Context) (CategoryResult, error) {
	var res CategoryResult
	db := m.DB.WithContext(ctx)
	mig := db.Migrator()

	hasCategory := mig.HasColumn(papersTable, "category")
	hasSubcategory := mig.HasColumn(papersTable, "subcategory")
	hasTags := mig.HasColumn(papersTable, "tags")
	m.Logger.Info("Schema erkannt",
		zap.Bool("category", hasCategory),
		zap.Bool("subcategory", hasSubcategory),
		zap.Bool("tags", hasTags))

	if !hasCategory && !hasSubcategory {
		m.Logger.Info("Keine category/subcategory-Spalten gefunden, Migration wird übersprungen.")
		res.Skipped = true
		return res, nil
	}

	if m.BeforeContract != nil {
		if err := m.BeforeContract(ctx); err != nil {
			return res, fmt.Errorf("before migration: %w", err)
		}
	}

	if !hasTags {
		if err := db.Exec("ALTER TABLE papers ADD COLUMN tags TEXT").Error; err != nil {
			return res, fmt.Errorf("add tags column: %w", err)
		}
		res.AddedTagsColumn = true
		m.Logger.Info("tags-Spalte angelegt.")
	}

	selectCols := []string{"id"}
	if hasCategory {
		selectCols = append(selectCols, "category")
	}
	if hasSubcategory {
		selectCols = append(selectCols, "subcategory")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var rows []legacyRow
		if err := tx.Table(papersTable).Select(selectCols).Order("id asc").Find(&rows).Error; err != nil {
			return fmt.Errorf("read legacy rows: %w", err)
		}
		for _, r := range rows {
			tags := LegacyTags(r.Category, r.Subcategory)
			if err := tx.Table(papersTable).Where("id = ?", r.ID).Update("tags", tags).Error; err != nil {
				return fmt.Errorf("update tags of paper %d: %w", r.ID, err)
			}
			m.Logger.Debug("Tags übertragen", zap.Uint("id", r.ID), zap.Stringp("tags", tags))
		}
		res.Converted = len(rows)

		if err := rebuildPapers(tx); err != nil {
			return fmt.Errorf("rebuild papers: %w", err)
		}
		res.Rebuilt = true
		return nil
	})
	if err != nil {
		m.Logger.Error("Migration fehlgeschlagen, Änderungen zurückgerollt", zap.Error(err))
		return CategoryResult{AddedTagsColumn: res.AddedTagsColumn}, err
	}

	m.Logger.Info("Migration category/subcategory -> tags abgeschlossen",
		zap.Int("converted", res.Converted))
	m.recordRun(ctx, RunCategoryToTags, res)
	return res, nil
}

// rebuildPapers legt papers_new im aktuellen Schema an, kopiert alle gemeinsamen
// Spalten und ersetzt damit papers. Muss innerhalb einer Transaktion laufen.
func rebuildPapers(tx *gorm.DB) error {
	mig := tx.Migrator()
	if mig.HasTable(rebuildTable) {
		if err := mig.DropTable(rebuildTable); err != nil {
			return err
		}
	}
	if err := mig.CreateTable(&rebuiltPaper{}); err != nil {
		return fmt.Errorf("create %s: %w", rebuildTable, err)
	}

	var targets, sources []string
	for _, col := range rebuildColumns {
		for _, src := range col.sources {
			if mig.HasColumn(papersTable, src) {
				targets = append(targets, col.target)
				sources = append(sources, src)
				break
			}
		}
	}
	if len(targets) == 0 || targets[0] != "id" {
		return errors.New("papers table has no id column")
	}

	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		rebuildTable, strings.Join(targets, ", "), strings.Join(sources, ", "), papersTable)
	if err := tx.Exec(copySQL).Error; err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if err := mig.DropTable(papersTable); err != nil {
		return fmt.Errorf("drop old table: %w", err)
	}
	if err := mig.RenameTable(rebuildTable, papersTable); err != nil {
		return fmt.Errorf("rename table: %w", err)
	}

	if tx.Dialector.Name() == "postgres" {
		// Sequenz hinter die übernommenen IDs setzen
		if err := tx.Exec(`SELECT setval(pg_get_serial_sequence('papers', 'id'), COALESCE((SELECT MAX(id) FROM papers), 0) + 1, false)`).Error; err != nil {
			return fmt.Errorf("reset id sequence: %w", err)
		}
	}
	return nil
}

type tagRow struct {
	ID   uint
	Tags *string
}

// CanonicalizeTags schreibt alle Tag-Werte, die kein JSON-Array sind, ins kanonische Format um.
// JSON-Arrays bleiben unverändert und werden nur gezählt.
func (m *Migrator) CanonicalizeTags(ctx context.Context) (CanonicalizeResult, error) {
	var res CanonicalizeResult
	db := m.DB.WithContext(ctx)
	if !db.Migrator().HasColumn(papersTable, "tags") {
		m.Logger.Info("Keine tags-Spalte vorhanden, Kanonisierung übersprungen.")
		res.Skipped = true
		return res, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var rows []tagRow
		if err := tx.Table(papersTable).Select("id", "tags").Where("tags IS NOT NULL").Order("id asc").Find(&rows).Error; err != nil {
			return fmt.Errorf("read tags: %w", err)
		}
		res.Scanned = len(rows)
		for _, r := range rows {
			if services.IsCanonicalTags(*r.Tags) {
				res.AlreadyCanonical++
				continue
			}
			canonical := services.EncodeTags(services.SplitTagList(*r.Tags))
			if err := tx.Table(papersTable).Where("id = ?", r.ID).Update("tags", canonical).Error; err != nil {
				return fmt.Errorf("update tags of paper %d: %w", r.ID, err)
			}
			m.Logger.Debug("Tags kanonisiert", zap.Uint("id", r.ID), zap.String("from", *r.Tags), zap.Stringp("to", canonical))
			res.Converted++
		}
		return nil
	})
	if err != nil {
		return CanonicalizeResult{}, err
	}

	m.Logger.Info("Tag-Kanonisierung abgeschlossen",
		zap.Int("converted", res.Converted),
		zap.Int("already_canonical", res.AlreadyCanonical))
	if res.Converted > 0 {
		m.recordRun(ctx, RunCanonicalizeTags, res)
	}
	return res, nil
}

// recordRun schreibt das Ergebnis nach migration_runs; Fehler werden nur geloggt.
func (m *Migrator) recordRun(ctx context.Context, name string, details any) {
	db := m.DB.WithContext(ctx)
	if err := db.AutoMigrate(&models.MigrationRun{}); err != nil {
		m.Logger.Warn("migration_runs konnte nicht angelegt werden", zap.Error(err))
		return
	}
	payload, err := json.Marshal(details)
	if err != nil {
		m.Logger.Warn("Migrationsergebnis nicht serialisierbar", zap.Error(err))
		return
	}
	run := models.MigrationRun{Name: name, Details: datatypes.JSON(payload)}
	if err := db.Create(&run).Error; err != nil {
		m.Logger.Warn("Migrationslauf konnte nicht protokolliert werden", zap.String("name", name), zap.Error(err))
	}
}
