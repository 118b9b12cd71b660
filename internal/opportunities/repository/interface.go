package repository

import (
	"context"

	"salescrm_backend/internal/opportunities/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// OpportunityReader provides non-locking reads of pipeline state.
type OpportunityReader interface {
	GetOpportunity(ctx context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error)
}

// AttachmentReader lists registered attachment records.
type AttachmentReader interface {
	ListAttachments(ctx context.Context, organizationID, opportunityID uuid.UUID) ([]Attachment, error)
}

// OpportunityLocker loads an opportunity and holds its row lock until the
// surrounding transaction ends.
type OpportunityLocker interface {
	LockOpportunity(ctx context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error)
}

// PipelineWriter persists validated pipeline writes.
type PipelineWriter interface {
	ApplyStep(ctx context.Context, opp domain.Opportunity, step domain.Step) error
	SaveArtifactLists(ctx context.Context, opp domain.Opportunity) error
	ApplyFinalize(ctx context.Context, opp domain.Opportunity, finalize domain.LateContractFinalize) error
}

// AttachmentWriter manages attachment records.
type AttachmentWriter interface {
	InsertAttachment(ctx context.Context, attachment Attachment) error
	GetAttachment(ctx context.Context, organizationID, opportunityID, id uuid.UUID) (Attachment, error)
	DeleteAttachment(ctx context.Context, organizationID, id uuid.UUID) error
}

// AccountStore resolves and links accounts for won opportunities.
type AccountStore interface {
	FindLeadCompany(ctx context.Context, organizationID, leadID uuid.UUID) (Company, error)
	FindAccountByCompany(ctx context.Context, organizationID, companyID uuid.UUID) (uuid.UUID, error)
	CreateCompany(ctx context.Context, company Company) error
	CreateAccount(ctx context.Context, account Account) (uuid.UUID, bool, error)
	LinkAccount(ctx context.Context, organizationID, opportunityID, accountID uuid.UUID) error
}

// CaseStore creates the lost-deal case for lost opportunities.
type CaseStore interface {
	FindLostDealCase(ctx context.Context, organizationID, opportunityID uuid.UUID) (uuid.UUID, error)
	CreateLostDealCase(ctx context.Context, c Case) (uuid.UUID, bool, error)
}

// RecipientReader resolves notification recipients.
type RecipientReader interface {
	ListActiveRecipients(ctx context.Context, organizationID uuid.UUID, userIDs []uuid.UUID) ([]Recipient, error)
}

// Tx is the set of operations available inside a pipeline transaction.
type Tx interface {
	OpportunityLocker
	PipelineWriter
	AttachmentWriter
	AccountStore
	CaseStore
}

// Store is the complete repository used by the pipeline service.
type Store interface {
	OpportunityReader
	AttachmentReader
	RecipientReader
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Ensure Repository implements Store.
var _ Store = (*Repository)(nil)
