package storage

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "projecthub-backend/internal/config"
)

// S3Service issues presigned URLs for chat attachment uploads and downloads.
// Clients upload directly to S3 so attachment bytes never pass through the
// API server.
type S3Service struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
	expiry  time.Duration
}

// PresignedUpload is a short-lived PUT URL plus the object key the client
// must echo back when confirming the upload.
type PresignedUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewS3Service builds the service from app config. Returns nil (not an
// error) when no bucket is configured so attachment routes can degrade
// gracefully.
func NewS3Service(ctx context.Context, cfg *appconfig.Config) (*S3Service, error) {
	if cfg.S3.BucketName == "" {
		log.Println("[Storage] no S3 bucket configured, attachments disabled")
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Service{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3.BucketName,
		region:  cfg.S3.Region,
		expiry:  cfg.S3.PresignExpiry,
	}, nil
}

// GenerateUploadURL creates a presigned PUT URL for a new attachment in the
// given project. The object key embeds a UUID so concurrent uploads of the
// same file name never collide.
func (s *S3Service) GenerateUploadURL(ctx context.Context, projectID int64, fileName, contentType string) (*PresignedUpload, error) {
	key := s.objectKey(projectID, fileName)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PresignedUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(s.expiry),
	}, nil
}

// GenerateDownloadURL creates a presigned GET URL for an existing object.
func (s *S3Service) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

// GetPublicURL returns the canonical object URL. Only useful when the
// bucket policy allows public reads, otherwise use GenerateDownloadURL.
func (s *S3Service) GetPublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// DeleteFile removes an object. Missing keys are not an error.
func (s *S3Service) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Service) objectKey(projectID int64, fileName string) string {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(filepath.Base(fileName), ext)
	base = sanitizeKeyPart(base)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("projects/%d/attachments/%s-%s%s", projectID, base, uuid.NewString(), ext)
}

// sanitizeKeyPart keeps object keys to a safe character set.
func sanitizeKeyPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
