package service

import (
	"context"
	"errors"
	"time"

	"salescrm_backend/internal/adapters/storage"
	"salescrm_backend/internal/events"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/internal/opportunities/transport"
	"salescrm_backend/platform/apperr"
	"salescrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	msgOpportunityNotFound = "opportunity not found"
	msgAttachmentNotFound  = "attachment not found"
	msgForbidden           = "you do not have permission to perform this action"
	msgStorageUnavailable  = "file storage is not configured"
)

const defaultTxTimeout = 10 * time.Second

// UploadPresigner issues direct-upload URLs for attachment files.
type UploadPresigner interface {
	GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error)
	ObjectURL(bucket, fileKey string) string
}

// Service orchestrates the opportunity pipeline.
type Service struct {
	repo       repository.Store
	policy     *domain.Policy
	dispatcher *Dispatcher
	eventBus   events.Bus
	log        *logger.Logger
	txTimeout  time.Duration
	now        func() time.Time

	presigner UploadPresigner // nil disables presigned uploads
	bucket    string
}

// New creates the pipeline service. A nil policy means DefaultPolicy.
func New(repo repository.Store, eventBus events.Bus, policy *domain.Policy, log *logger.Logger) *Service {
	if policy == nil {
		policy = domain.DefaultPolicy()
	}
	s := &Service{
		repo:      repo,
		policy:    policy,
		eventBus:  eventBus,
		log:       log,
		txTimeout: defaultTxTimeout,
		now:       time.Now,
	}
	s.dispatcher = NewDispatcher(log)
	return s
}

// SetTxTimeout bounds each pipeline transaction.
func (s *Service) SetTxTimeout(d time.Duration) {
	if d > 0 {
		s.txTimeout = d
	}
}

// SetPresigner enables presigned attachment uploads into bucket.
func (s *Service) SetPresigner(p UploadPresigner, bucket string) {
	s.presigner = p
	s.bucket = bucket
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) authorize(actor domain.Actor, action domain.Action, rel domain.Relation) error {
	if !s.policy.Allows(actor, action, rel) {
		return apperr.Forbidden(msgForbidden)
	}
	return nil
}

// snapshot is an opportunity with its attachment records.
type snapshot struct {
	opp         domain.Opportunity
	attachments []repository.Attachment
}

// loadSnapshot reads the opportunity and its attachments concurrently.
func (s *Service) loadSnapshot(ctx context.Context, organizationID, id uuid.UUID) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opp, err := s.repo.GetOpportunity(gctx, organizationID, id)
		if err != nil {
			return mapRepoError(err)
		}
		snap.opp = opp
		return nil
	})
	g.Go(func() error {
		items, err := s.repo.ListAttachments(gctx, organizationID, id)
		if err != nil {
			return mapRepoError(err)
		}
		snap.attachments = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgOpportunityNotFound)
	case errors.Is(err, repository.ErrAttachmentNotFound):
		return apperr.NotFound(msgAttachmentNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Internal("pipeline store timed out", err)
	default:
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Internal("pipeline store failure", err)
	}
}

func toOpportunityResponse(opp domain.Opportunity) transport.OpportunityResponse {
	return transport.OpportunityResponse{
		ID:                 opp.ID,
		Name:               opp.Name,
		Stage:              opp.Stage,
		MeetingDate:        formatDate(opp.MeetingDate),
		Feedback:           opp.Feedback,
		ExpectedCloseDate:  formatDate(opp.ExpectedCloseDate),
		Result:             opp.Result,
		Probability:        opp.Probability,
		AttachmentLinks:    nonNilRefs(opp.AttachmentLinks),
		ContractAttachment: nonNilRefs(opp.ContractAttachment),
		Reason:             opp.Reason,
		AccountID:          opp.AccountID,
		LeadID:             opp.LeadID,
		ClosedBy:           opp.ClosedBy,
		ClosedOn:           formatDate(opp.ClosedOn),
		ContactIDs:         nonNilIDs(opp.ContactIDs),
		AssignedTo:         nonNilIDs(opp.AssigneeIDs),
		IsActive:           opp.IsActive,
		CreatedAt:          opp.CreatedAt,
		UpdatedAt:          opp.UpdatedAt,
	}
}

func toAttachmentResponse(a repository.Attachment) transport.AttachmentResponse {
	return transport.AttachmentResponse{
		ID:             a.ID,
		OpportunityID:  a.OpportunityID,
		AttachmentType: a.Type,
		FileName:       a.FileName,
		FileType:       a.FileType,
		FileURL:        a.FileURL,
		UploadedBy:     a.UploadedBy,
		CreatedAt:      a.CreatedAt,
	}
}

func toAttachmentResponses(items []repository.Attachment) []transport.AttachmentResponse {
	out := make([]transport.AttachmentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toAttachmentResponse(item))
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(transport.DateLayout)
	return &s
}

func nonNilRefs(refs []domain.AttachmentRef) []domain.AttachmentRef {
	if refs == nil {
		return []domain.AttachmentRef{}
	}
	return refs
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
