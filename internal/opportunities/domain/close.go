package domain

import (
	"fmt"
	"time"

	"salescrm_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	msgContractRequired      = `Please upload contract before closing as won. Use POST /api/v1/opportunities/attachments with attachment_type="contract"`
	msgReasonRequired        = "Please provide a reason for closing as lost"
	msgInvalidCloseOption    = "close_option must be CLOSED WON or CLOSED LOST"
	msgConflictingCloseFmt   = "Conflicting close request: %s requests %s but %s requests %s"
	msgCloseOnlyAtCloseFmt   = "Opportunity must be at CLOSE stage to be closed; current stage is %s"
	msgAlreadyClosedOtherFmt = "Opportunity is already closed as %s and cannot be closed as %s"
)

// WonProbability is forced onto opportunities closed as won.
const WonProbability = 100

// CloseOutcome is the set of values stamped by a successful close resolution.
type CloseOutcome struct {
	Stage       Stage
	Result      bool
	Probability *int
	ClosedOn    time.Time
	ClosedBy    uuid.UUID
}

// CloseChoice extracts the requested terminal stage from a patch. close_option,
// a terminal stage value and result are three ways of asking for the same
// thing; when more than one is present they must agree.
func CloseChoice(patch Patch) (*Stage, error) {
	var choice *Stage
	var source Field

	if patch.CloseOption != nil {
		if !patch.CloseOption.IsTerminal() {
			return nil, apperr.FieldValidation(msgInvalidCloseOption, string(FieldCloseOption), "")
		}
		c := *patch.CloseOption
		choice, source = &c, FieldCloseOption
	}

	if patch.Stage != nil && patch.Stage.IsTerminal() {
		if choice != nil && *choice != *patch.Stage {
			return nil, conflictingClose(source, *choice, FieldStage, *patch.Stage)
		}
		if choice == nil {
			c := *patch.Stage
			choice, source = &c, FieldStage
		}
	}

	if patch.Result != nil {
		implied := StageClosedLost
		if *patch.Result {
			implied = StageClosedWon
		}
		if choice != nil && *choice != implied {
			return nil, conflictingClose(source, *choice, FieldResult, implied)
		}
		if choice == nil {
			choice = &implied
		}
	}

	return choice, nil
}

func conflictingClose(a Field, aStage Stage, b Field, bStage Stage) error {
	return apperr.FieldValidation(fmt.Sprintf(msgConflictingCloseFmt, a, aStage, b, bStage), string(b), string(StageClose))
}

// ResolveClose validates a close decision for an opportunity at CLOSE and
// returns the values to stamp. WON requires a persisted contract; LOST
// requires a reason, either persisted or supplied in the same patch.
func ResolveClose(opp Opportunity, patch Patch, choice Stage, actorID uuid.UUID, now time.Time) (CloseOutcome, error) {
	if opp.Stage != StageClose {
		return CloseOutcome{}, apperr.FieldValidation(fmt.Sprintf(msgCloseOnlyAtCloseFmt, opp.Stage), string(FieldCloseOption), string(opp.Stage))
	}
	if err := GuardFields(StageClose, patch.DataFields()); err != nil {
		return CloseOutcome{}, err
	}

	view := mergedView{opp: opp, patch: patch}
	outcome := CloseOutcome{
		Stage:    choice,
		ClosedOn: DateOf(now),
		ClosedBy: actorID,
	}
	if patch.ClosedOn != nil {
		outcome.ClosedOn = DateOf(*patch.ClosedOn)
	}

	switch choice {
	case StageClosedWon:
		if !view.has(FieldContractAttachment) {
			return CloseOutcome{}, apperr.FieldValidation(msgContractRequired, string(FieldContractAttachment), string(StageClose))
		}
		probability := WonProbability
		outcome.Result = true
		outcome.Probability = &probability
	case StageClosedLost:
		if !view.has(FieldReason) {
			return CloseOutcome{}, apperr.FieldValidation(msgReasonRequired, string(FieldReason), string(StageClose))
		}
		outcome.Result = false
	default:
		return CloseOutcome{}, apperr.FieldValidation(msgInvalidCloseOption, string(FieldCloseOption), string(StageClose))
	}

	return outcome, nil
}

// DateOf truncates t to a calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
