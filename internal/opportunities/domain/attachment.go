package domain

import (
	"strings"
	"time"

	"salescrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// AttachmentType selects the artifact list an uploaded file lands in.
type AttachmentType string

const (
	AttachmentProposal AttachmentType = "proposal"
	AttachmentContract AttachmentType = "contract"
)

const msgInvalidAttachmentType = "attachment_type must be 'proposal' or 'contract'"

// ParseAttachmentType defaults to proposal when raw is empty.
func ParseAttachmentType(raw string) (AttachmentType, error) {
	switch AttachmentType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AttachmentProposal:
		return AttachmentProposal, nil
	case AttachmentContract:
		return AttachmentContract, nil
	default:
		return "", apperr.FieldValidation(msgInvalidAttachmentType, "attachment_type", "")
	}
}

// ListField is the opportunity field this attachment type appends to.
func (t AttachmentType) ListField() Field {
	if t == AttachmentContract {
		return FieldContractAttachment
	}
	return FieldAttachmentLinks
}

// LateContractFinalize stamps a won opportunity that receives its contract
// after closing. Stage is untouched and side effects are not re-run.
type LateContractFinalize struct {
	ClosedBy    uuid.UUID
	ClosedOn    time.Time
	Result      bool
	Probability int
}

// Classification is the outcome of routing one attachment.
type Classification struct {
	Type     AttachmentType
	List     Field
	Ref      AttachmentRef
	Finalize *LateContractFinalize
}

// ClassifyAttachment decides where ref goes and whether the opportunity must
// be retroactively finalized.
func ClassifyAttachment(opp Opportunity, attachmentType AttachmentType, ref AttachmentRef, actorID uuid.UUID, now time.Time) Classification {
	c := Classification{
		Type: attachmentType,
		List: attachmentType.ListField(),
		Ref:  ref,
	}
	if attachmentType == AttachmentContract && opp.Stage == StageClosedWon {
		c.Finalize = &LateContractFinalize{
			ClosedBy:    actorID,
			ClosedOn:    DateOf(now),
			Result:      true,
			Probability: WonProbability,
		}
	}
	return c
}

// ApplyTo appends the attachment and applies any finalize stamps.
func (c Classification) ApplyTo(opp *Opportunity) {
	if c.Type == AttachmentContract {
		opp.ContractAttachment = append(opp.ContractAttachment, c.Ref)
	} else {
		opp.AttachmentLinks = append(opp.AttachmentLinks, c.Ref)
	}
	if f := c.Finalize; f != nil {
		closedBy, closedOn := f.ClosedBy, f.ClosedOn
		opp.ClosedBy = &closedBy
		opp.ClosedOn = &closedOn
		opp.Result = f.Result
		opp.Probability = f.Probability
	}
}

// RemoveAttachment drops the entry with id from both artifact lists and
// reports which list held it.
func RemoveAttachment(opp *Opportunity, id uuid.UUID) (Field, bool) {
	if list, ok := removeRef(opp.AttachmentLinks, id); ok {
		opp.AttachmentLinks = list
		return FieldAttachmentLinks, true
	}
	if list, ok := removeRef(opp.ContractAttachment, id); ok {
		opp.ContractAttachment = list
		return FieldContractAttachment, true
	}
	return "", false
}

func removeRef(list []AttachmentRef, id uuid.UUID) ([]AttachmentRef, bool) {
	for i, ref := range list {
		if ref.ID == id {
			out := make([]AttachmentRef, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}
