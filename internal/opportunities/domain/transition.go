package domain

import (
	"fmt"

	"salescrm_backend/platform/apperr"
)

const (
	msgMeetingDateRequired  = "Meeting date is required to move to Proposal stage"
	msgProposalDocRequired  = "Proposal document is required to move to Negotiation stage"
	msgFeedbackRequired     = "Feedback is required to move to Close stage"
	msgOpportunityClosedFmt = "Opportunity is already closed as %s; its stage cannot change"
	msgIllegalTransitionFmt = "Cannot move opportunity from %s to %s"
	msgUseCloseOption       = "Use close_option to resolve an opportunity at CLOSE stage"
	msgInactiveOpportunity  = "Cannot update inactive opportunity"
	msgClosedFieldFmt       = "Opportunity is closed as %s; %s can no longer be changed"
)

// RequireActive rejects any mutation of a soft-invalidated opportunity.
func RequireActive(opp Opportunity) error {
	if !opp.IsActive {
		return apperr.Validation(msgInactiveOpportunity)
	}
	return nil
}

// edge is an allowed forward move. requires names the single field that must
// be present (persisted or supplied) for the move; empty means none.
type edge struct {
	requires Field
	message  string
}

// stageGraph holds every non-terminal forward edge. CLOSE resolves into the
// terminal stages through close resolution, not through this table.
var stageGraph = map[Stage]map[Stage]edge{
	StageQualification: {
		StageIdentifyDecisionMakers: {},
		StageProposal:               {requires: FieldMeetingDate, message: msgMeetingDateRequired},
	},
	StageIdentifyDecisionMakers: {
		StageProposal: {requires: FieldMeetingDate, message: msgMeetingDateRequired},
	},
	StageProposal: {
		StageNegotiation: {requires: FieldAttachmentLinks, message: msgProposalDocRequired},
	},
	StageNegotiation: {
		StageClose: {requires: FieldFeedback, message: msgFeedbackRequired},
	},
	StageClose: {},
}

// nextStage is the default forward step shown to clients.
var nextStage = map[Stage]Stage{
	StageQualification:          StageIdentifyDecisionMakers,
	StageIdentifyDecisionMakers: StageProposal,
	StageProposal:               StageNegotiation,
	StageNegotiation:            StageClose,
}

// IsEdge reports whether from → to is a move in the pipeline graph,
// including the two CLOSE resolutions.
func IsEdge(from, to Stage) bool {
	if from == StageClose && to.IsTerminal() {
		return true
	}
	_, ok := stageGraph[from][to]
	return ok
}

// NextStage returns the default successor of s, if any.
func NextStage(s Stage) (Stage, bool) {
	next, ok := nextStage[s]
	return next, ok
}

// ValidateTransition checks a requested non-terminal stage change against the
// graph and the edge precondition, evaluated over the persisted opportunity
// merged with the incoming patch. It never mutates anything.
func ValidateTransition(opp Opportunity, patch Patch, to Stage) error {
	from := opp.Stage
	if from.IsTerminal() {
		return apperr.FieldValidation(fmt.Sprintf(msgOpportunityClosedFmt, from), string(FieldStage), string(from))
	}
	if from == StageClose && to.IsTerminal() {
		// Terminal resolution goes through ResolveClose.
		return apperr.FieldValidation(msgUseCloseOption, string(FieldCloseOption), string(from))
	}

	rule, ok := stageGraph[from][to]
	if !ok {
		return apperr.FieldValidation(fmt.Sprintf(msgIllegalTransitionFmt, from, to), string(FieldStage), string(from))
	}

	if rule.requires != "" && !(mergedView{opp: opp, patch: patch}).has(rule.requires) {
		return apperr.FieldValidation(rule.message, string(rule.requires), string(to))
	}
	return nil
}

// preconditionField returns the field gating from → to, if the edge has one.
func preconditionField(from, to Stage) (Field, bool) {
	rule, ok := stageGraph[from][to]
	if !ok || rule.requires == "" {
		return "", false
	}
	return rule.requires, true
}

// AvailableTransitions lists the successors of the current stage whose
// preconditions the persisted state already satisfies.
func AvailableTransitions(opp Opportunity) []Stage {
	view := mergedView{opp: opp}
	out := make([]Stage, 0, 2)

	if opp.Stage == StageClose {
		if view.has(FieldContractAttachment) {
			out = append(out, StageClosedWon)
		}
		if view.has(FieldReason) {
			out = append(out, StageClosedLost)
		}
		return out
	}

	for _, candidate := range AllStages {
		rule, ok := stageGraph[opp.Stage][candidate]
		if !ok {
			continue
		}
		if rule.requires == "" || view.has(rule.requires) {
			out = append(out, candidate)
		}
	}
	return out
}
