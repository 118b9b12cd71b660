package storage

import (
	"net/url"
	"strings"
	"testing"

	"salescrm_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestValidateContentType(t *testing.T) {
	cases := []struct {
		contentType string
		ok          bool
	}{
		{"application/pdf", true},
		{"Application/PDF; charset=binary", true},
		{"text/plain; charset=utf-8", true},
		{"application/x-msdownload", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidateContentType(tc.contentType)
		if tc.ok && err != nil {
			t.Fatalf("%q: expected allowed, got %v", tc.contentType, err)
		}
		if !tc.ok && apperr.GetKind(err) != apperr.KindValidation {
			t.Fatalf("%q: expected validation error, got %v", tc.contentType, err)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(1024, 2048); err != nil {
		t.Fatalf("expected size within limit, got %v", err)
	}
	if err := ValidateFileSize(4096, 2048); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected oversize rejection, got %v", err)
	}
	if err := ValidateFileSize(0, 2048); err == nil {
		t.Fatal("expected zero size rejection")
	}
	if err := ValidateFileSize(1<<40, 0); err != nil {
		t.Fatalf("expected no upper bound when max is unset, got %v", err)
	}
}

func TestObjectKeyKeepsExtension(t *testing.T) {
	id := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	got := objectKey("org/opp/contract", "signed deal.pdf", id)
	if got != "org/opp/contract/signed deal_3f2504e0.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestObjectURL(t *testing.T) {
	endpoint, _ := url.Parse("https://minio.example.com")
	got := objectURL(endpoint, "attachments", "org/opp/proposal/deck_1234.pdf")
	if got != "https://minio.example.com/attachments/org/opp/proposal/deck_1234.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
	if !strings.HasPrefix(endpoint.String(), "https://minio.example.com") || endpoint.Path != "" {
		t.Fatal("expected endpoint to be left untouched")
	}
}
