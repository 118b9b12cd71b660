package domain

import (
	"fmt"
	"time"

	"salescrm_backend/platform/apperr"

	"github.com/google/uuid"
)

const msgCloseWithMoveFmt = "close_option cannot be combined with a move to %s"

// Step is one ordered write inside a pipeline update transaction.
type Step struct {
	Fields Patch
	Stage  *Stage
	Close  *CloseOutcome
}

// UpdatePlan is the validated, ordered set of writes for one pipeline update.
type UpdatePlan struct {
	From  Stage
	To    Stage
	Steps []Step
	// Repair is set when a closed opportunity receives its own close choice
	// again. Nothing is written; side effects are re-checked.
	Repair bool

	before Opportunity
}

// StageChanged reports whether the plan moves the opportunity.
func (p UpdatePlan) StageChanged() bool {
	return p.From != p.To
}

// NeedsDispatch reports whether side effects must be (re)evaluated.
func (p UpdatePlan) NeedsDispatch() bool {
	return p.To.IsTerminal() && (p.StageChanged() || p.Repair)
}

// IsNoop reports whether the plan writes nothing and dispatches nothing.
func (p UpdatePlan) IsNoop() bool {
	return len(p.Steps) == 0 && !p.Repair
}

// PlanUpdate validates patch against opp and produces the ordered writes.
// The stage guard and transition checks run here; nothing is persisted.
//
// When a stage move has a precondition field and the patch supplies it, that
// field is written first in its own step, checked against the current stage,
// so the target stage's guard does not see it.
func PlanUpdate(opp Opportunity, patch Patch, actorID uuid.UUID, now time.Time) (UpdatePlan, error) {
	plan := UpdatePlan{From: opp.Stage, To: opp.Stage, before: opp}

	if err := RequireActive(opp); err != nil {
		return plan, err
	}
	if patch.IsEmpty() {
		return plan, nil
	}

	choice, err := CloseChoice(patch)
	if err != nil {
		return plan, err
	}
	explicitChoice := patch.CloseOption != nil || (patch.Stage != nil && patch.Stage.IsTerminal())
	if !explicitChoice && opp.Stage != StageClose && !opp.Stage.IsTerminal() {
		// result outside CLOSE is just a field; the guard rejects it below.
		choice = nil
	}

	if opp.Stage.IsTerminal() {
		return planTerminal(plan, opp, patch, choice)
	}

	if choice != nil {
		if patch.Stage != nil && !patch.Stage.IsTerminal() && *patch.Stage != opp.Stage {
			return plan, apperr.FieldValidation(fmt.Sprintf(msgCloseWithMoveFmt, *patch.Stage), string(FieldCloseOption), string(opp.Stage))
		}
		outcome, err := ResolveClose(opp, patch, *choice, actorID, now)
		if err != nil {
			return plan, err
		}
		if fields := patch.without(FieldResult); len(fields.DataFields()) > 0 {
			plan.Steps = append(plan.Steps, Step{Fields: fields})
		}
		plan.Steps = append(plan.Steps, Step{Stage: &outcome.Stage, Close: &outcome})
		plan.To = outcome.Stage
		return plan, nil
	}

	if patch.Stage != nil && *patch.Stage != opp.Stage {
		to := *patch.Stage
		if err := ValidateTransition(opp, patch, to); err != nil {
			return plan, err
		}

		rest := patch
		if f, ok := preconditionField(opp.Stage, to); ok && FieldSet(patch.DataFields()).Contains(f) {
			if err := GuardFields(opp.Stage, []Field{f}); err != nil {
				return plan, err
			}
			plan.Steps = append(plan.Steps, Step{Fields: patch.only(f)})
			rest = patch.without(f)
		}

		if err := GuardFields(to, rest.DataFields()); err != nil {
			return plan, err
		}
		plan.Steps = append(plan.Steps, Step{Fields: rest, Stage: &to})
		plan.To = to
		return plan, nil
	}

	if err := GuardFields(opp.Stage, patch.DataFields()); err != nil {
		return plan, err
	}
	plan.Steps = append(plan.Steps, Step{Fields: patch})
	return plan, nil
}

func planTerminal(plan UpdatePlan, opp Opportunity, patch Patch, choice *Stage) (UpdatePlan, error) {
	closed := func(field Field) error {
		return apperr.FieldValidation(fmt.Sprintf(msgOpportunityClosedFmt, opp.Stage), string(field), string(opp.Stage))
	}

	if choice != nil && *choice != opp.Stage {
		return plan, apperr.FieldValidation(fmt.Sprintf(msgAlreadyClosedOtherFmt, opp.Stage, *choice), string(FieldCloseOption), string(opp.Stage))
	}
	if patch.Stage != nil && *patch.Stage != opp.Stage {
		return plan, closed(FieldStage)
	}
	// Resending the persisted values is part of an identical re-issue.
	if fields := patch.without(FieldResult).changedFrom(opp); len(fields) > 0 {
		return plan, apperr.FieldValidation(fmt.Sprintf(msgClosedFieldFmt, opp.Stage, fields[0]), string(fields[0]), string(opp.Stage))
	}

	plan.Repair = choice != nil
	return plan, nil
}

// ApplyTo writes the step onto opp. Repositories persist the same changes;
// this in-memory form backs response building and tests.
func (s Step) ApplyTo(opp *Opportunity) {
	f := s.Fields
	if f.MeetingDate != nil {
		d := DateOf(*f.MeetingDate)
		opp.MeetingDate = &d
	}
	if f.Feedback != nil {
		opp.Feedback = f.Feedback
	}
	if f.ExpectedCloseDate != nil {
		d := DateOf(*f.ExpectedCloseDate)
		opp.ExpectedCloseDate = &d
	}
	if f.AttachmentLinksSet {
		opp.AttachmentLinks = append([]AttachmentRef(nil), f.AttachmentLinks...)
	}
	if f.Reason != nil {
		opp.Reason = f.Reason
	}
	if f.ClosedOn != nil {
		d := DateOf(*f.ClosedOn)
		opp.ClosedOn = &d
	}
	if s.Stage != nil {
		opp.Stage = *s.Stage
	}
	if c := s.Close; c != nil {
		opp.Result = c.Result
		if c.Probability != nil {
			opp.Probability = *c.Probability
		}
		closedOn := c.ClosedOn
		closedBy := c.ClosedBy
		opp.ClosedOn = &closedOn
		opp.ClosedBy = &closedBy
	}
}

// Changes renders the human-readable change log for the plan. Only fields
// whose value differs from the opportunity before the step are listed.
func (p UpdatePlan) Changes() []string {
	changes := make([]string, 0, len(p.Steps)+1)
	current := p.From
	opp := p.before
	for _, step := range p.Steps {
		for _, f := range step.Fields.changedFrom(opp) {
			if msg, ok := fieldChangeMessages[f]; ok {
				changes = append(changes, msg)
			}
		}
		step.ApplyTo(&opp)
		if step.Stage != nil && *step.Stage != current {
			changes = append(changes, fmt.Sprintf("Stage: %s → %s", current, *step.Stage))
			current = *step.Stage
		}
	}
	return changes
}

var fieldChangeMessages = map[Field]string{
	FieldMeetingDate:       "Meeting date updated",
	FieldFeedback:          "Feedback updated",
	FieldExpectedCloseDate: "Expected close date updated",
	FieldAttachmentLinks:   "Attachments updated",
	FieldReason:            "Close reason added",
	FieldClosedOn:          "Close date updated",
}
