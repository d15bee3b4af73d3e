package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-shelf/config"
)

// SnapshotTable liest alle Zeilen einer Tabelle schema-unabhängig und gibt sie als
// gzip-komprimiertes JSON zurück. So lässt sich auch eine Tabelle im alten Schema sichern.
func SnapshotTable(ctx context.Context, db *gorm.DB, table string) ([]byte, int, error) {
	var rows []map[string]any
	if err := db.WithContext(ctx).Table(table).Order("id asc").Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", table, err)
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gzipWriter).Encode(rows); err != nil {
		return nil, 0, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(rows), nil
}

// Backup lädt Snapshots in einen Bucket und hält nur die neuesten Keep Stück.
type Backup struct {
	Client *s3.Client
	Bucket string
	Keep   int
	Logger *zap.Logger
}

// NewBackup erstellt den Backup-Job aus BACKUP_S3_BUCKET und den S3-Zugangsdaten.
func NewBackup(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backup, error) {
	if cfg.BackupBucket == "" {
		return nil, fmt.Errorf("BACKUP_S3_BUCKET is not set")
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Backup{Client: client, Bucket: cfg.BackupBucket, Keep: cfg.KeepBackups, Logger: logger}, nil
}

// Run sichert die papers-Tabelle und rotiert alte Sicherungen. Gibt den Objekt-Key zurück.
func (b *Backup) Run(ctx context.Context, db *gorm.DB, label string) (string, error) {
	data, count, err := SnapshotTable(ctx, db, "papers")
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("backup-%s-%s.json.gz", label, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	if _, err := b.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}
	b.Logger.Info("Backup hochgeladen", zap.String("bucket", b.Bucket), zap.String("key", key), zap.Int("rows", count))

	if err := b.rotate(ctx); err != nil {
		return key, fmt.Errorf("rotate backups: %w", err)
	}
	return key, nil
}

// Before liefert einen Hook, der vor einer Migration einen Snapshot sichert.
func (b *Backup) Before(db *gorm.DB, label string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := b.Run(ctx, db, label)
		return err
	}
}

func (b *Backup) rotate(ctx context.Context) error {
	output, err := b.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.Bucket),
		Prefix: aws.String("backup-"),
	})
	if err != nil {
		return err
	}

	if b.Keep <= 0 || len(output.Contents) <= b.Keep {
		b.Logger.Debug("Keine Rotation nötig", zap.Int("backups", len(output.Contents)), zap.Int("keep", b.Keep))
		return nil
	}

	sort.Slice(output.Contents, func(i, j int) bool {
		return aws.ToTime(output.Contents[i].LastModified).After(aws.ToTime(output.Contents[j].LastModified))
	})

	for _, obj := range output.Contents[b.Keep:] {
		b.Logger.Info("Lösche altes Backup", zap.String("key", aws.ToString(obj.Key)))
		_, err := b.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.Bucket),
			Key:    obj.Key,
		})
		if err != nil {
			b.Logger.Warn("Backup konnte nicht gelöscht werden", zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
		}
	}
	return nil
}
