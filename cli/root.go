// Package cli enthält die Wartungsbefehle von paperctl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/config"
	"paper-shelf/storage"
)

var sqlitePath string

// RootCmd ist der oberste Befehl.
var RootCmd = &cobra.Command{
	Use:           "paperctl",
	Short:         "Wartung der Paper-Datenbank",
	Long:          "Schema-Migrationen, Tag-Kanonisierung und Backups für die papers-Tabelle.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "SQLite-Datei statt der konfigurierten Datenbank verwenden")
}

// env bündelt, was jeder Befehl braucht.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func openEnv() (*env, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if sqlitePath != "" {
		cfg.DBDriver = "sqlite"
		cfg.SQLitePath = sqlitePath
	}
	db, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
