// Package storage issues direct-upload URLs against S3-compatible object
// storage for opportunity attachments.
package storage

import (
	"context"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned upload.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"file_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StorageService defines the object storage operations the API uses.
type StorageService interface {
	// GenerateUploadURL creates a presigned PUT URL under folder
	// (e.g. "{org}/{opportunity}/{attachment_type}").
	GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error)

	// ObjectURL returns the stable URL of an uploaded object.
	ObjectURL(bucket, fileKey string) string

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}
