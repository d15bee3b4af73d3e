package storage

import (
	"bytes"
	"context"
	"fmt"

	"paper-shelf/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// S3PDFStore legt hochgeladene PDFs in einem Bucket ab.
type S3PDFStore struct {
	Client  *s3.Client
	Bucket  string
	BaseURL string
	Prefix  string
}

// NewS3PDFStore erstellt den Store aus der Konfiguration.
func NewS3PDFStore(client *s3.Client, cfg *config.Config) *S3PDFStore {
	return &S3PDFStore{Client: client, Bucket: cfg.S3Bucket, BaseURL: cfg.S3URL, Prefix: "pdfs"}
}

// Save lädt die Datei hoch und gibt den öffentlichen Link zurück.
func (s *S3PDFStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	key := s.Prefix + "/" + objectName(filename)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfMIME),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.BaseURL, s.Bucket, key), nil
}
