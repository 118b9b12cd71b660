// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"salescrm_backend/platform/events"
	"salescrm_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus builds the process-local bus used by the API binary.
func NewInMemoryBus(log *logger.Logger) *events.InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Opportunity Pipeline Events
// =============================================================================

// OpportunityStageChanged is published after a pipeline update that moved the
// opportunity has committed.
type OpportunityStageChanged struct {
	BaseEvent
	OpportunityID   uuid.UUID   `json:"opportunity_id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	OpportunityName string      `json:"opportunity_name"`
	FromStage       string      `json:"from_stage"`
	ToStage         string      `json:"to_stage"`
	ActorID         uuid.UUID   `json:"actor_id"`
	AssigneeIDs     []uuid.UUID `json:"assignee_ids"`
}

func (e OpportunityStageChanged) EventName() string { return "opportunities.stage_changed" }

// OpportunityClosed is published after an opportunity reached a terminal
// stage and its side effects committed.
type OpportunityClosed struct {
	BaseEvent
	OpportunityID uuid.UUID  `json:"opportunity_id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	Stage         string     `json:"stage"`
	AccountID     *uuid.UUID `json:"account_id,omitempty"`
	CaseID        *uuid.UUID `json:"case_id,omitempty"`
	ActorID       uuid.UUID  `json:"actor_id"`
}

func (e OpportunityClosed) EventName() string { return "opportunities.closed" }

// OpportunityAttachmentRegistered is published after an attachment was
// classified onto an opportunity.
type OpportunityAttachmentRegistered struct {
	BaseEvent
	OpportunityID  uuid.UUID `json:"opportunity_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	AttachmentID   uuid.UUID `json:"attachment_id"`
	AttachmentType string    `json:"attachment_type"`
	Finalized      bool      `json:"finalized"`
	ActorID        uuid.UUID `json:"actor_id"`
}

func (e OpportunityAttachmentRegistered) EventName() string {
	return "opportunities.attachment_registered"
}
