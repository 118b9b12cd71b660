package domain

// StageOption is a value/label pair rendered by pipeline clients.
type StageOption struct {
	Value Stage  `json:"value"`
	Label string `json:"label"`
}

// Metadata describes what the client may do with an opportunity right now.
type Metadata struct {
	CurrentStage         Stage         `json:"current_stage"`
	CurrentStageDisplay  string        `json:"current_stage_display"`
	DisplayStage         Stage         `json:"display_stage"`
	EditableFields       []Field       `json:"editable_fields"`
	NextStage            *Stage        `json:"next_stage"`
	AvailableStages      []StageOption `json:"available_stages"`
	AvailableTransitions []Stage       `json:"available_transitions"`
	CloseOptions         []StageOption `json:"close_options"`
	IsAtClose            bool          `json:"is_at_close"`
	IsClosed             bool          `json:"is_closed"`
	CloseResult          *string       `json:"close_result"`
	HasAttachments       bool          `json:"has_attachments"`
	HasContract          bool          `json:"has_contract"`
	HasFeedback          bool          `json:"has_feedback"`
	CanMoveToClose       bool          `json:"can_move_to_close"`
	Reason               *string       `json:"reason"`
}

var closeOptions = []StageOption{
	{Value: StageClosedWon, Label: "Close as Won"},
	{Value: StageClosedLost, Label: "Close as Lost"},
}

// BuildMetadata derives pipeline metadata from the persisted opportunity.
func BuildMetadata(opp Opportunity) Metadata {
	view := mergedView{opp: opp}

	visual := make([]StageOption, 0, len(VisualStages))
	for _, s := range VisualStages {
		visual = append(visual, StageOption{Value: s, Label: s.Label()})
	}

	m := Metadata{
		CurrentStage:         opp.Stage,
		CurrentStageDisplay:  opp.Stage.Label(),
		DisplayStage:         opp.Stage.Display(),
		EditableFields:       EditableFields(opp.Stage),
		AvailableStages:      visual,
		AvailableTransitions: AvailableTransitions(opp),
		CloseOptions:         append([]StageOption(nil), closeOptions...),
		IsAtClose:            opp.Stage == StageClose,
		IsClosed:             opp.Stage.IsTerminal(),
		HasAttachments:       view.has(FieldAttachmentLinks),
		HasContract:          view.has(FieldContractAttachment),
		HasFeedback:          view.has(FieldFeedback),
		CanMoveToClose:       opp.Stage == StageNegotiation && view.has(FieldFeedback),
	}
	if !opp.IsActive {
		m.EditableFields = FieldSet{}
		m.AvailableTransitions = []Stage{}
	}
	if next, ok := NextStage(opp.Stage); ok {
		m.NextStage = &next
	}
	if result := opp.Stage.CloseResult(); result != "" {
		m.CloseResult = &result
	}
	if opp.Stage == StageClosedLost {
		m.Reason = opp.Reason
	}
	return m
}
