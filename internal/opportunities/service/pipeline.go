package service

import (
	"context"
	"fmt"
	"time"

	"salescrm_backend/internal/events"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/internal/opportunities/transport"
	"salescrm_backend/platform/apperr"
	"salescrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgInvalidStageFmt = "Unknown stage '%s'"
	msgInvalidDateFmt  = "Field '%s' must be a date in YYYY-MM-DD format"
)

// GetPipeline returns the opportunity snapshot with its pipeline metadata.
func (s *Service) GetPipeline(ctx context.Context, actor domain.Actor, id uuid.UUID) (*transport.PipelineResponse, error) {
	snap, err := s.loadSnapshot(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, domain.ActionViewPipeline, domain.RelationTo(actor, snap.opp)); err != nil {
		return nil, err
	}

	return &transport.PipelineResponse{
		Opportunity:      toOpportunityResponse(snap.opp),
		PipelineMetadata: domain.BuildMetadata(snap.opp),
		Attachments:      toAttachmentResponses(snap.attachments),
	}, nil
}

// updateResult is what a committed pipeline transaction produced.
type updateResult struct {
	opp      domain.Opportunity
	plan     domain.UpdatePlan
	dispatch DispatchResult
}

// UpdatePipeline validates and applies a pipeline update. The opportunity row
// is locked for the whole transaction; validation, ordered writes and side
// effect dispatch commit or roll back together.
func (s *Service) UpdatePipeline(ctx context.Context, actor domain.Actor, id uuid.UUID, req transport.UpdatePipelineRequest) (*transport.UpdatePipelineResponse, error) {
	patch, err := patchFromRequest(req, s.now())
	if err != nil {
		return nil, err
	}

	res, err := s.applyUpdate(ctx, actor, id, patch)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, actor, res)

	snap, err := s.loadSnapshot(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	return &transport.UpdatePipelineResponse{
		Opportunity:      toOpportunityResponse(snap.opp),
		PipelineMetadata: domain.BuildMetadata(snap.opp),
		Changes:          res.plan.Changes(),
		Attachments:      toAttachmentResponses(snap.attachments),
	}, nil
}

func (s *Service) applyUpdate(ctx context.Context, actor domain.Actor, id uuid.UUID, patch domain.Patch) (updateResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var res updateResult
	err := s.repo.WithinTx(txCtx, func(tx repository.Tx) error {
		opp, err := tx.LockOpportunity(txCtx, actor.OrganizationID, id)
		if err != nil {
			return mapRepoError(err)
		}
		if err := s.authorize(actor, domain.ActionUpdatePipeline, domain.RelationTo(actor, opp)); err != nil {
			return err
		}

		plan, err := domain.PlanUpdate(opp, patch, actor.UserID, s.now())
		if err != nil {
			return err
		}

		for _, step := range plan.Steps {
			if err := tx.ApplyStep(txCtx, opp, step); err != nil {
				return mapRepoError(err)
			}
			step.ApplyTo(&opp)
		}

		if plan.NeedsDispatch() {
			dispatch, err := s.dispatcher.Dispatch(txCtx, tx, opp, actor.UserID)
			if err != nil {
				return err
			}
			res.dispatch = dispatch
		}

		res.opp = opp
		res.plan = plan
		return nil
	})
	if err != nil {
		return updateResult{}, mapRepoError(err)
	}
	return res, nil
}

// announce logs and publishes a committed update. Subscribers run
// asynchronously and never affect the response.
func (s *Service) announce(ctx context.Context, actor domain.Actor, res updateResult) {
	plan := res.plan
	if plan.StageChanged() {
		s.log.WithContext(ctx).StageTransition(res.opp.ID.String(), string(plan.From), string(plan.To), actor.UserID.String())
		s.eventBus.Publish(ctx, events.OpportunityStageChanged{
			BaseEvent:       events.NewBaseEvent(),
			OpportunityID:   res.opp.ID,
			TenantID:        res.opp.OrganizationID,
			OpportunityName: res.opp.Name,
			FromStage:       string(plan.From),
			ToStage:         string(plan.To),
			ActorID:         actor.UserID,
			AssigneeIDs:     append([]uuid.UUID(nil), res.opp.AssigneeIDs...),
		})
	}

	if d := res.dispatch; d.Kind != "" {
		s.log.WithContext(ctx).SideEffect(d.Kind, res.opp.ID.String(), d.EntityID().String(), d.Created)
		s.eventBus.Publish(ctx, events.OpportunityClosed{
			BaseEvent:     events.NewBaseEvent(),
			OpportunityID: res.opp.ID,
			TenantID:      res.opp.OrganizationID,
			Stage:         string(res.opp.Stage),
			AccountID:     d.AccountID,
			CaseID:        d.CaseID,
			ActorID:       actor.UserID,
		})
	}
}

// patchFromRequest converts the wire request into a domain patch. Text is
// sanitized; dates and stage names are parsed strictly.
func patchFromRequest(req transport.UpdatePipelineRequest, now time.Time) (domain.Patch, error) {
	var patch domain.Patch
	var err error

	if patch.Stage, err = parseStageField(req.Stage, domain.FieldStage); err != nil {
		return domain.Patch{}, err
	}
	if patch.CloseOption, err = parseStageField(req.CloseOption, domain.FieldCloseOption); err != nil {
		return domain.Patch{}, err
	}
	if patch.MeetingDate, err = parseDateField(req.MeetingDate, domain.FieldMeetingDate); err != nil {
		return domain.Patch{}, err
	}
	if patch.ExpectedCloseDate, err = parseDateField(req.ExpectedCloseDate, domain.FieldExpectedCloseDate); err != nil {
		return domain.Patch{}, err
	}
	if patch.ClosedOn, err = parseDateField(req.ClosedOn, domain.FieldClosedOn); err != nil {
		return domain.Patch{}, err
	}

	patch.Feedback = sanitizedText(req.Feedback)
	patch.Reason = sanitizedText(req.Reason)
	patch.Result = req.Result

	if req.AttachmentLinks != nil {
		patch.AttachmentLinksSet = true
		patch.AttachmentLinks = make([]domain.AttachmentRef, 0, len(*req.AttachmentLinks))
		for _, link := range *req.AttachmentLinks {
			ref := domain.AttachmentRef{
				ID:         uuid.New(),
				FileName:   sanitize.FileName(link.FileName),
				URL:        link.URL,
				UploadedAt: now.UTC(),
				FileType:   link.FileType,
			}
			if link.ID != nil {
				ref.ID = *link.ID
			}
			if link.UploadedAt != nil {
				ref.UploadedAt = link.UploadedAt.UTC()
			}
			patch.AttachmentLinks = append(patch.AttachmentLinks, ref)
		}
	}
	return patch, nil
}

func parseStageField(raw *string, field domain.Field) (*domain.Stage, error) {
	if raw == nil {
		return nil, nil
	}
	stage, ok := domain.ParseStage(*raw)
	if !ok {
		return nil, apperr.FieldValidation(fmt.Sprintf(msgInvalidStageFmt, *raw), string(field), "")
	}
	return &stage, nil
}

func parseDateField(raw *string, field domain.Field) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(transport.DateLayout, *raw)
	if err != nil {
		return nil, apperr.FieldValidation(fmt.Sprintf(msgInvalidDateFmt, field), string(field), "")
	}
	return &t, nil
}

// sanitizedText keeps a supplied blank value as an explicit empty string so
// precondition checks see the caller's intent.
func sanitizedText(raw *string) *string {
	if raw == nil {
		return nil
	}
	clean := sanitize.Text(*raw)
	return &clean
}
