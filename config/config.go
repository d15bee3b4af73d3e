package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// Datenbank: "postgres" oder "sqlite" (Einzelplatz-Betrieb)
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"papers.db"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"5001"`

	// "tags" (aktuelles Schema) oder "legacy" (Kategorie/Unterkategorie)
	ClassificationMode string `envconfig:"CLASSIFICATION_MODE" default:"tags"`
	// Verhalten der Tag-Suche bei leerer Eingabe: "none" oder "all"
	TagSearchEmptyQuery string `envconfig:"TAG_SEARCH_EMPTY_QUERY" default:"none"`
	TagSearchLimit      int    `envconfig:"TAG_SEARCH_LIMIT" default:"0"`

	// Migration category/subcategory -> tags beim Start ausführen
	AutoMigrateTags bool `envconfig:"AUTO_MIGRATE_TAGS" default:"false"`
	// Cron-Ausdruck für die Kanonisierung der Tags; leer = deaktiviert
	CanonicalizeSchedule string `envconfig:"CANONICALIZE_SCHEDULE"`

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"public/uploads"`
	UploadURLPath string `envconfig:"UPLOAD_URL_PATH" default:"/uploads"`
	MaxUploadMB   int64  `envconfig:"MAX_UPLOAD_MB" default:"32"`

	// S3 ist optional; ohne Bucket landen PDFs im UploadDir.
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	BackupBucket string `envconfig:"BACKUP_S3_BUCKET"`
	KeepBackups  int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// UseS3 meldet, ob für PDFs ein S3-Bucket konfiguriert ist.
func (c *Config) UseS3() bool {
	return c.S3Bucket != "" && c.S3URL != ""
}

// Validate prüft Kombinationen, die envconfig allein nicht abbilden kann.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		var missing []string
		if c.DBHost == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres driver requires %s", strings.Join(missing, ", "))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.ClassificationMode {
	case "tags", "legacy":
	default:
		return fmt.Errorf("unknown CLASSIFICATION_MODE %q", c.ClassificationMode)
	}

	switch c.TagSearchEmptyQuery {
	case "none", "all":
	default:
		return fmt.Errorf("unknown TAG_SEARCH_EMPTY_QUERY %q", c.TagSearchEmptyQuery)
	}

	if c.S3Bucket != "" && (c.S3Key == "" || c.S3Secret == "" || c.S3URL == "") {
		return fmt.Errorf("S3_BUCKET requires S3_KEY, S3_SECRET and S3_URL")
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return &c, err
	}
	return &c, c.Validate()
}
