package storage

import (
	"fmt"
	"strings"

	"salescrm_backend/platform/apperr"
)

// AllowedContentTypes lists the MIME types accepted for opportunity
// attachments.
var AllowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain": true,
	"text/csv":   true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ValidateContentType checks the type, ignoring parameters like charset.
func ValidateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !AllowedContentTypes[normalized] {
		return apperr.FieldValidation(fmt.Sprintf("content type %q is not allowed", contentType), "content_type", "")
	}
	return nil
}

// ValidateFileSize checks sizeBytes against maxBytes. A non-positive maxBytes
// disables the upper bound.
func ValidateFileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return apperr.FieldValidation("file size must be greater than 0", "size_bytes", "")
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return apperr.FieldValidation(fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxBytes), "size_bytes", "")
	}
	return nil
}
