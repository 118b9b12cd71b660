package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotifyAssigned = "opportunities.notify_assigned"

// NotifyAssignedPayload asks the worker to email the assignees of an
// opportunity about a committed stage change.
type NotifyAssignedPayload struct {
	OpportunityID string   `json:"opportunity_id"`
	TenantID      string   `json:"tenant_id"`
	RecipientIDs  []string `json:"recipient_ids"`
	FromStage     string   `json:"from_stage"`
	ToStage       string   `json:"to_stage"`
}

func NewNotifyAssignedTask(payload NotifyAssignedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyAssigned, data), nil
}

func ParseNotifyAssignedPayload(task *asynq.Task) (NotifyAssignedPayload, error) {
	var payload NotifyAssignedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotifyAssignedPayload{}, err
	}
	return payload, nil
}
