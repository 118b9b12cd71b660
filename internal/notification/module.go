// Package notification turns committed pipeline events into queued
// assignment notifications. Domain modules publish events and never talk to
// the queue or email transport directly.
package notification

import (
	"context"

	"salescrm_backend/internal/events"
	"salescrm_backend/internal/scheduler"
	"salescrm_backend/platform/logger"

	"github.com/google/uuid"
)

// Module subscribes to pipeline events and enqueues notification tasks.
type Module struct {
	scheduler scheduler.NotificationScheduler
	log       *logger.Logger
}

// New creates the notification module. A nil scheduler disables enqueueing.
func New(sched scheduler.NotificationScheduler, log *logger.Logger) *Module {
	return &Module{scheduler: sched, log: log}
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.OpportunityStageChanged{}.EventName(), m)
}

// Handle implements events.Handler. Enqueue failures are logged and
// swallowed; the pipeline update has already committed.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.OpportunityStageChanged:
		m.handleStageChanged(ctx, e)
	}
	return nil
}

func (m *Module) handleStageChanged(ctx context.Context, e events.OpportunityStageChanged) {
	if m.scheduler == nil {
		return
	}

	recipients := recipientIDs(e.AssigneeIDs, e.ActorID)
	if len(recipients) == 0 {
		return
	}

	err := m.scheduler.EnqueueNotifyAssigned(ctx, scheduler.NotifyAssignedPayload{
		OpportunityID: e.OpportunityID.String(),
		TenantID:      e.TenantID.String(),
		RecipientIDs:  recipients,
		FromStage:     e.FromStage,
		ToStage:       e.ToStage,
	})
	if err != nil {
		m.log.Error("failed to enqueue assignment notification",
			"error", err,
			"opportunity_id", e.OpportunityID,
			"to_stage", e.ToStage,
		)
	}
}

// recipientIDs returns the distinct assignees other than the actor.
func recipientIDs(assignees []uuid.UUID, actorID uuid.UUID) []string {
	seen := make(map[uuid.UUID]struct{}, len(assignees))
	out := make([]string, 0, len(assignees))
	for _, id := range assignees {
		if id == actorID || id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	return out
}

var _ events.Handler = (*Module)(nil)
