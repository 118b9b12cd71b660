package domain

import (
	"fmt"

	"salescrm_backend/platform/apperr"
)

const msgFieldLockedFmt = "Field '%s' cannot be edited at stage %s"

// FieldSet is a small ordered set of fields.
type FieldSet []Field

// Contains reports membership.
func (s FieldSet) Contains(f Field) bool {
	for _, item := range s {
		if item == f {
			return true
		}
	}
	return false
}

// editableFields maps each stage to the data fields a request may touch while
// the opportunity is at, or moving into, that stage. stage and close_option
// are control fields and always allowed. Terminal stages accept nothing.
var editableFields = map[Stage]FieldSet{
	StageQualification:          {FieldMeetingDate, FieldExpectedCloseDate},
	StageIdentifyDecisionMakers: {FieldMeetingDate, FieldExpectedCloseDate},
	StageProposal:               {FieldAttachmentLinks, FieldExpectedCloseDate},
	StageNegotiation:            {FieldFeedback, FieldExpectedCloseDate},
	StageClose:                  {FieldResult, FieldReason, FieldAttachmentLinks, FieldClosedOn},
	StageClosedWon:              {},
	StageClosedLost:             {},
}

// EditableFields returns the fields editable at stage.
func EditableFields(stage Stage) FieldSet {
	fields := editableFields[stage]
	out := make(FieldSet, len(fields))
	copy(out, fields)
	return out
}

// GuardFields rejects the first field not editable at stage.
func GuardFields(stage Stage, fields []Field) error {
	allowed := editableFields[stage]
	for _, f := range fields {
		if !allowed.Contains(f) {
			return apperr.FieldValidation(fmt.Sprintf(msgFieldLockedFmt, f, stage), string(f), string(stage))
		}
	}
	return nil
}
