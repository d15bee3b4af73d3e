package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/config"
	"paper-shelf/migrations"
	"paper-shelf/models"
	"paper-shelf/services"
	"paper-shelf/storage"
)

var (
	papersCreatedCounter     prometheus.Counter
	papersUpdatedCounter     prometheus.Counter
	importanceChangesCounter prometheus.Counter
	tagSearchesCounter       prometheus.Counter
	tagsCanonicalizedCounter prometheus.Counter
)

func init() {
	papersCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papers_created_total",
			Help: "Total number of papers submitted.",
		},
	)
	papersUpdatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papers_updated_total",
			Help: "Total number of paper edits.",
		},
	)
	importanceChangesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_importance_changes_total",
			Help: "Total number of importance flag changes.",
		},
	)
	tagSearchesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tag_searches_total",
			Help: "Total number of tag autocomplete queries.",
		},
	)
	tagsCanonicalizedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tags_canonicalized_total",
			Help: "Total number of tag values rewritten into the JSON format.",
		},
	)
	prometheus.MustRegister(
		papersCreatedCounter,
		papersUpdatedCounter,
		importanceChangesCounter,
		tagSearchesCounter,
		tagsCanonicalizedCounter,
	)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := storage.Open(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}

	mode, err := services.ParseClassificationMode(cfg.ClassificationMode)
	if err != nil {
		logging.Fatal("Invalid classification mode", zap.Error(err))
	}

	logging.Info("Preparing database schema...", zap.String("mode", string(mode)))
	if err := prepareSchema(context.Background(), cfg, db, mode, logging); err != nil {
		logging.Fatal("Schema preparation failed", zap.Error(err))
	}

	pdfStore, err := newPDFStore(context.Background(), cfg)
	if err != nil {
		logging.Fatal("PDF store creation failed", zap.Error(err))
	}

	router, err := buildRouter(cfg, db, pdfStore, logging)
	if err != nil {
		logging.Fatal("Router setup failed", zap.Error(err))
	}

	// Setup Cron
	if cfg.CanonicalizeSchedule != "" && mode == services.ModeTags {
		migrator := migrations.NewMigrator(db, logging)
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.CanonicalizeSchedule, func() {
			logging.Info("Running scheduled tag canonicalization...")
			res, err := migrator.CanonicalizeTags(context.Background())
			if err != nil {
				logging.Error("Cron job failed", zap.Error(err))
				return
			}
			tagsCanonicalizedCounter.Add(float64(res.Converted))
		})
		if err != nil {
			logging.Fatal("Invalid CANONICALIZE_SCHEDULE", zap.String("schedule", cfg.CanonicalizeSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// prepareSchema bringt die papers-Tabelle auf den Stand des gewählten Modus.
// Im Tag-Modus läuft die Kategorie-Migration nur mit AUTO_MIGRATE_TAGS.
func prepareSchema(ctx context.Context, cfg *config.Config, db *gorm.DB, mode services.ClassificationMode, logging *zap.Logger) error {
	mig := db.Migrator()

	if mode == services.ModeLegacy {
		if mig.HasColumn("papers", "tags") && !migrations.NeedsCategoryMigration(db) {
			return errors.New("database already uses the tag schema, set CLASSIFICATION_MODE=tags")
		}
		return db.AutoMigrate(&models.LegacyPaper{})
	}

	if migrations.NeedsCategoryMigration(db) {
		if !cfg.AutoMigrateTags {
			return errors.New("papers table still has category columns, run `paperctl migrate tags` or set AUTO_MIGRATE_TAGS=true")
		}
		migrator := migrations.NewMigrator(db, logging)
		if cfg.BackupBucket != "" {
			backup, err := storage.NewBackup(ctx, cfg, logging)
			if err != nil {
				return err
			}
			migrator.BeforeContract = backup.Before(db, "pre-tags")
		}
		if _, err := migrator.MigrateCategoriesToTags(ctx); err != nil {
			return fmt.Errorf("migrate categories to tags: %w", err)
		}
	}

	logging.Info("Running database auto-migration...")
	return db.AutoMigrate(&models.Paper{}, &models.MigrationRun{})
}

// newPDFStore wählt S3, wenn ein Bucket konfiguriert ist, sonst das lokale Upload-Verzeichnis.
func newPDFStore(ctx context.Context, cfg *config.Config) (storage.PDFStore, error) {
	if cfg.UseS3() {
		s3Client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewS3PDFStore(s3Client, cfg), nil
	}
	return storage.NewLocalPDFStore(cfg.UploadDir, cfg.UploadURLPath)
}
