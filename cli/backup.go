package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"paper-shelf/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "papers-Tabelle nach BACKUP_S3_BUCKET sichern und alte Backups rotieren",
		RunE:  runBackup,
	}
	cmd.Flags().String("label", "manual", "Namensbestandteil des Backup-Objekts")

	RootCmd.AddCommand(cmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	b, err := storage.NewBackup(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return err
	}
	key, err := b.Run(cmd.Context(), e.db, label)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), map[string]string{"bucket": b.Bucket, "key": key})
}
