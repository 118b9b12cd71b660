package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is how long an upload URL stays valid.
const PresignedURLTTL = 15 * time.Minute

// MinIOService implements StorageService using MinIO.
type MinIOService struct {
	client      *minio.Client
	maxFileSize int64
}

var _ StorageService = (*MinIOService)(nil)

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{
		client:      client,
		maxFileSize: cfg.GetMinIOMaxFileSize(),
	}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// GenerateUploadURL validates the upload and returns a presigned PUT URL.
func (s *MinIOService) GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}
	if err := ValidateFileSize(sizeBytes, s.maxFileSize); err != nil {
		return nil, err
	}

	fileKey := objectKey(folder, fileName, uuid.New())
	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedPutObject(ctx, bucket, fileKey, PresignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// ObjectURL joins the client endpoint, bucket and key.
func (s *MinIOService) ObjectURL(bucket, fileKey string) string {
	return objectURL(s.client.EndpointURL(), bucket, fileKey)
}

// objectKey appends a short random suffix so repeated uploads of the same
// file name never overwrite each other.
func objectKey(folder, fileName string, id uuid.UUID) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	return path.Join(folder, fmt.Sprintf("%s_%s%s", base, id.String()[:8], ext))
}

func objectURL(endpoint *url.URL, bucket, fileKey string) string {
	u := *endpoint
	u.Path = path.Join("/", u.Path, bucket, fileKey)
	return u.String()
}
