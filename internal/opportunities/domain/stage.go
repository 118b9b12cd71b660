package domain

import "strings"

// Stage is the position of an opportunity in the sales pipeline.
type Stage string

const (
	StageQualification          Stage = "QUALIFICATION"
	StageIdentifyDecisionMakers Stage = "IDENTIFY_DECISION_MAKERS"
	StageProposal               Stage = "PROPOSAL"
	StageNegotiation            Stage = "NEGOTIATION"
	StageClose                  Stage = "CLOSE"
	StageClosedWon              Stage = "CLOSED WON"
	StageClosedLost             Stage = "CLOSED LOST"
)

// AllStages lists every stage in pipeline order.
var AllStages = []Stage{
	StageQualification,
	StageIdentifyDecisionMakers,
	StageProposal,
	StageNegotiation,
	StageClose,
	StageClosedWon,
	StageClosedLost,
}

// VisualStages are the stages drawn in the pipeline bar. Both terminal
// stages render as CLOSE.
var VisualStages = AllStages[:5]

var stageLabels = map[Stage]string{
	StageQualification:          "Qualification",
	StageIdentifyDecisionMakers: "Identify Decision Makers",
	StageProposal:               "Proposal",
	StageNegotiation:            "Negotiation",
	StageClose:                  "Close",
	StageClosedWon:              "Closed Won",
	StageClosedLost:             "Closed Lost",
}

// ParseStage accepts the canonical value; underscores may stand in for the
// space in the terminal stages.
func ParseStage(raw string) (Stage, bool) {
	normalized := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	switch normalized {
	case "CLOSED_WON":
		normalized = StageClosedWon
	case "CLOSED_LOST":
		normalized = StageClosedLost
	}
	if _, ok := stageLabels[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Label returns the human-readable stage name.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal reports whether the stage is CLOSED WON or CLOSED LOST.
func (s Stage) IsTerminal() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Display maps terminal stages onto CLOSE for pipeline rendering.
func (s Stage) Display() Stage {
	if s.IsTerminal() {
		return StageClose
	}
	return s
}

// CloseResult is "won", "lost" or empty for open opportunities.
func (s Stage) CloseResult() string {
	switch s {
	case StageClosedWon:
		return "won"
	case StageClosedLost:
		return "lost"
	default:
		return ""
	}
}
