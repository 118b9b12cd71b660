package service

import (
	"context"
	"fmt"
	"path"

	"salescrm_backend/internal/events"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/internal/opportunities/transport"
	"salescrm_backend/platform/apperr"
	"salescrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgClosedAttachmentDeleteFmt = "Attachments cannot be removed from an opportunity closed as %s"
	msgInvalidFileName           = "file_name is required"
	changeContractUploaded       = "Contract uploaded"
	changeProposalUploaded       = "Attachments updated"
)

// RegisterAttachment records an uploaded file and classifies it into the
// proposal or contract list. A contract arriving on a won opportunity
// finalizes it without re-running side effects.
func (s *Service) RegisterAttachment(ctx context.Context, actor domain.Actor, req transport.RegisterAttachmentRequest) (*transport.RegisterAttachmentResponse, error) {
	attachmentType, err := domain.ParseAttachmentType(req.AttachmentType)
	if err != nil {
		return nil, err
	}
	fileName := sanitize.FileName(req.FileName)
	if fileName == "" {
		return nil, apperr.FieldValidation(msgInvalidFileName, "file_name", "")
	}

	now := s.now().UTC()
	record := repository.Attachment{
		ID:             uuid.New(),
		OrganizationID: actor.OrganizationID,
		OpportunityID:  req.OpportunityID,
		Type:           string(attachmentType),
		FileName:       fileName,
		FileType:       sanitize.Text(req.FileType),
		FileURL:        req.FileURL,
		UploadedBy:     &actor.UserID,
		CreatedAt:      now,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var (
		opp            domain.Opportunity
		classification domain.Classification
	)
	err = s.repo.WithinTx(txCtx, func(tx repository.Tx) error {
		var err error
		opp, err = tx.LockOpportunity(txCtx, actor.OrganizationID, req.OpportunityID)
		if err != nil {
			return mapRepoError(err)
		}
		if err := s.authorize(actor, domain.ActionRegisterAttachment, domain.RelationTo(actor, opp)); err != nil {
			return err
		}
		if err := domain.RequireActive(opp); err != nil {
			return err
		}

		ref := domain.AttachmentRef{
			ID:         record.ID,
			FileName:   record.FileName,
			URL:        record.FileURL,
			UploadedAt: record.CreatedAt,
			FileType:   record.FileType,
		}
		classification = domain.ClassifyAttachment(opp, attachmentType, ref, actor.UserID, now)

		if err := tx.InsertAttachment(txCtx, record); err != nil {
			return mapRepoError(err)
		}
		classification.ApplyTo(&opp)
		if err := tx.SaveArtifactLists(txCtx, opp); err != nil {
			return mapRepoError(err)
		}
		if classification.Finalize != nil {
			if err := tx.ApplyFinalize(txCtx, opp, *classification.Finalize); err != nil {
				return mapRepoError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.eventBus.Publish(ctx, events.OpportunityAttachmentRegistered{
		BaseEvent:      events.NewBaseEvent(),
		OpportunityID:  opp.ID,
		TenantID:       opp.OrganizationID,
		AttachmentID:   record.ID,
		AttachmentType: record.Type,
		Finalized:      classification.Finalize != nil,
		ActorID:        actor.UserID,
	})

	change := changeProposalUploaded
	if attachmentType == domain.AttachmentContract {
		change = changeContractUploaded
	}
	return &transport.RegisterAttachmentResponse{
		Attachment:         toAttachmentResponse(record),
		ClassifiedInto:     classification.List,
		AttachmentLinks:    nonNilRefs(opp.AttachmentLinks),
		ContractAttachment: nonNilRefs(opp.ContractAttachment),
		Finalized:          classification.Finalize != nil,
		Changes:            []string{change},
	}, nil
}

// ListAttachments returns the opportunity's attachments, newest first.
func (s *Service) ListAttachments(ctx context.Context, actor domain.Actor, opportunityID uuid.UUID) (*transport.ListAttachmentsResponse, error) {
	snap, err := s.loadSnapshot(ctx, actor.OrganizationID, opportunityID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, domain.ActionListAttachments, domain.RelationTo(actor, snap.opp)); err != nil {
		return nil, err
	}
	return &transport.ListAttachmentsResponse{Items: toAttachmentResponses(snap.attachments)}, nil
}

// DeleteAttachment removes an attachment record and its list entry. Closed
// opportunities keep their artifacts.
func (s *Service) DeleteAttachment(ctx context.Context, actor domain.Actor, opportunityID, attachmentID uuid.UUID) error {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err := s.repo.WithinTx(txCtx, func(tx repository.Tx) error {
		opp, err := tx.LockOpportunity(txCtx, actor.OrganizationID, opportunityID)
		if err != nil {
			return mapRepoError(err)
		}
		attachment, err := tx.GetAttachment(txCtx, actor.OrganizationID, opportunityID, attachmentID)
		if err != nil {
			return mapRepoError(err)
		}

		rel := domain.RelationTo(actor, opp)
		rel.IsUploader = attachment.UploadedBy != nil && *attachment.UploadedBy == actor.UserID
		if err := s.authorize(actor, domain.ActionDeleteAttachment, rel); err != nil {
			return err
		}
		if err := domain.RequireActive(opp); err != nil {
			return err
		}
		if opp.Stage.IsTerminal() {
			return apperr.FieldValidation(fmt.Sprintf(msgClosedAttachmentDeleteFmt, opp.Stage), "attachment", string(opp.Stage))
		}

		if err := tx.DeleteAttachment(txCtx, actor.OrganizationID, attachmentID); err != nil {
			return mapRepoError(err)
		}
		if _, removed := domain.RemoveAttachment(&opp, attachmentID); removed {
			if err := tx.SaveArtifactLists(txCtx, opp); err != nil {
				return mapRepoError(err)
			}
		}
		return nil
	})
	if err != nil {
		return mapRepoError(err)
	}
	s.log.WithContext(ctx).Info("attachment removed", "opportunity_id", opportunityID, "attachment_id", attachmentID)
	return nil
}

// PresignUpload issues a direct-upload URL for an attachment file and the
// file_url to register afterwards.
func (s *Service) PresignUpload(ctx context.Context, actor domain.Actor, opportunityID uuid.UUID, req transport.PresignAttachmentRequest) (*transport.PresignAttachmentResponse, error) {
	if s.presigner == nil {
		return nil, apperr.BadRequest(msgStorageUnavailable)
	}
	attachmentType, err := domain.ParseAttachmentType(req.AttachmentType)
	if err != nil {
		return nil, err
	}

	opp, err := s.repo.GetOpportunity(ctx, actor.OrganizationID, opportunityID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := s.authorize(actor, domain.ActionRegisterAttachment, domain.RelationTo(actor, opp)); err != nil {
		return nil, err
	}
	if err := domain.RequireActive(opp); err != nil {
		return nil, err
	}

	fileName := sanitize.FileName(req.FileName)
	if fileName == "" {
		return nil, apperr.FieldValidation(msgInvalidFileName, "file_name", "")
	}

	folder := path.Join(actor.OrganizationID.String(), opportunityID.String(), string(attachmentType))
	presigned, err := s.presigner.GenerateUploadURL(ctx, s.bucket, folder, fileName, req.ContentType, req.SizeBytes)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Internal("failed to presign upload", err)
	}

	return &transport.PresignAttachmentResponse{
		UploadURL:      presigned.URL,
		FileKey:        presigned.FileKey,
		FileURL:        s.presigner.ObjectURL(s.bucket, presigned.FileKey),
		AttachmentType: string(attachmentType),
		ExpiresAt:      presigned.ExpiresAt,
	}, nil
}
