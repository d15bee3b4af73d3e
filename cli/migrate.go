package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-shelf/migrations"
	"paper-shelf/storage"
)

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema-Migrationen der papers-Tabelle",
	}

	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "category/subcategory in tags überführen und die alten Spalten entfernen",
		RunE:  runMigrateTags,
	}
	tagsCmd.Flags().Bool("backup", false, "Vor dem Umbau einen Snapshot nach BACKUP_S3_BUCKET hochladen")

	canonicalizeCmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Alle Tag-Werte in das JSON-Format umschreiben",
		RunE:  runCanonicalize,
	}

	migrateCmd.AddCommand(tagsCmd, canonicalizeCmd)
	RootCmd.AddCommand(migrateCmd)
}

func runMigrateTags(cmd *cobra.Command, args []string) error {
	withBackup, _ := cmd.Flags().GetBool("backup")

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	m := migrations.NewMigrator(e.db, e.logger)
	if withBackup {
		b, err := storage.NewBackup(cmd.Context(), e.cfg, e.logger)
		if err != nil {
			return err
		}
		m.BeforeContract = b.Before(e.db, "pre-tags")
	}
	res, err := m.MigrateCategoriesToTags(cmd.Context())
	if err != nil {
		return fmt.Errorf("migrate tags: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runCanonicalize(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	res, err := migrations.NewMigrator(e.db, e.logger).CanonicalizeTags(cmd.Context())
	if err != nil {
		return fmt.Errorf("canonicalize tags: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}
