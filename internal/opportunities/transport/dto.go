package transport

import (
	"time"

	"salescrm_backend/internal/opportunities/domain"

	"github.com/google/uuid"
)

// DateLayout is the wire format of calendar-date fields.
const DateLayout = "2006-01-02"

// ── Requests ──────────────────────────────────────────────────────────────────

// AttachmentLinkRequest is one proposal reference supplied in a pipeline update.
type AttachmentLinkRequest struct {
	ID         *uuid.UUID `json:"id,omitempty"`
	FileName   string     `json:"file_name" validate:"required,max=255"`
	URL        string     `json:"url" validate:"required,url,max=2048"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
	FileType   string     `json:"file_type" validate:"max=255"`
}

// UpdatePipelineRequest is the PATCH body. Absent and null fields are ignored.
type UpdatePipelineRequest struct {
	Stage             *string                  `json:"stage" validate:"omitempty,max=64"`
	MeetingDate       *string                  `json:"meeting_date" validate:"omitempty,datetime=2006-01-02"`
	Feedback          *string                  `json:"feedback" validate:"omitempty,max=5000"`
	ExpectedCloseDate *string                  `json:"expected_close_date" validate:"omitempty,datetime=2006-01-02"`
	Result            *bool                    `json:"result"`
	AttachmentLinks   *[]AttachmentLinkRequest `json:"attachment_links" validate:"omitempty,max=50,dive"`
	CloseOption       *string                  `json:"close_option" validate:"omitempty,max=64"`
	Reason            *string                  `json:"reason" validate:"omitempty,max=5000"`
	ClosedOn          *string                  `json:"closed_on" validate:"omitempty,datetime=2006-01-02"`
}

// RegisterAttachmentRequest registers an already-uploaded file.
type RegisterAttachmentRequest struct {
	OpportunityID  uuid.UUID `json:"opportunity_id" validate:"required"`
	FileName       string    `json:"file_name" validate:"required,notblank,max=255"`
	FileType       string    `json:"file_type" validate:"max=255"`
	FileURL        string    `json:"file_url" validate:"required,url,max=2048"`
	AttachmentType string    `json:"attachment_type" validate:"omitempty,oneof=proposal contract"`
}

// PresignAttachmentRequest asks for a direct-upload URL.
type PresignAttachmentRequest struct {
	FileName       string `json:"file_name" validate:"required,notblank,max=255"`
	ContentType    string `json:"content_type" validate:"required,max=255"`
	SizeBytes      int64  `json:"size_bytes" validate:"required,gt=0"`
	AttachmentType string `json:"attachment_type" validate:"omitempty,oneof=proposal contract"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// OpportunityResponse is the pipeline snapshot of an opportunity.
type OpportunityResponse struct {
	ID                 uuid.UUID              `json:"id"`
	Name               string                 `json:"name"`
	Stage              domain.Stage           `json:"stage"`
	MeetingDate        *string                `json:"meeting_date"`
	Feedback           *string                `json:"feedback"`
	ExpectedCloseDate  *string                `json:"expected_close_date"`
	Result             bool                   `json:"result"`
	Probability        int                    `json:"probability"`
	AttachmentLinks    []domain.AttachmentRef `json:"attachment_links"`
	ContractAttachment []domain.AttachmentRef `json:"contract_attachment"`
	Reason             *string                `json:"reason"`
	AccountID          *uuid.UUID             `json:"account_id"`
	LeadID             *uuid.UUID             `json:"lead_id"`
	ClosedBy           *uuid.UUID             `json:"closed_by"`
	ClosedOn           *string                `json:"closed_on"`
	ContactIDs         []uuid.UUID            `json:"contacts"`
	AssignedTo         []uuid.UUID            `json:"assigned_to"`
	IsActive           bool                   `json:"is_active"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// AttachmentResponse is a registered attachment record.
type AttachmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	OpportunityID  uuid.UUID  `json:"opportunity_id"`
	AttachmentType string     `json:"attachment_type"`
	FileName       string     `json:"file_name"`
	FileType       string     `json:"file_type"`
	FileURL        string     `json:"file_url"`
	UploadedBy     *uuid.UUID `json:"uploaded_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PipelineResponse is returned by GET pipeline.
type PipelineResponse struct {
	Opportunity      OpportunityResponse  `json:"opportunity"`
	PipelineMetadata domain.Metadata      `json:"pipeline_metadata"`
	Attachments      []AttachmentResponse `json:"attachments"`
}

// UpdatePipelineResponse is returned by PATCH pipeline.
type UpdatePipelineResponse struct {
	Opportunity      OpportunityResponse  `json:"opportunity"`
	PipelineMetadata domain.Metadata      `json:"pipeline_metadata"`
	Changes          []string             `json:"changes"`
	Attachments      []AttachmentResponse `json:"attachments"`
}

// RegisterAttachmentResponse reports where the attachment was classified.
type RegisterAttachmentResponse struct {
	Attachment         AttachmentResponse     `json:"attachment"`
	ClassifiedInto     domain.Field           `json:"classified_into"`
	AttachmentLinks    []domain.AttachmentRef `json:"attachment_links"`
	ContractAttachment []domain.AttachmentRef `json:"contract_attachment"`
	Finalized          bool                   `json:"finalized"`
	Changes            []string               `json:"changes"`
}

// ListAttachmentsResponse lists attachments newest first.
type ListAttachmentsResponse struct {
	Items []AttachmentResponse `json:"items"`
}

// PresignAttachmentResponse carries the upload URL and the file_url to
// register once the upload completes.
type PresignAttachmentResponse struct {
	UploadURL      string    `json:"upload_url"`
	FileKey        string    `json:"file_key"`
	FileURL        string    `json:"file_url"`
	AttachmentType string    `json:"attachment_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
