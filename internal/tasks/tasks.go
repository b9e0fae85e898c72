// Package tasks provides the durable task queue: typed task payloads, an
// enqueue client with per-(lead, purpose) uniqueness, and a worker with the
// retry/backoff/dead-letter policy applied to every outbound channel call.
package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskLeadDispatch = "lead.dispatch"

// PurposeInitialContact is the dispatch purpose for the first outbound
// message after lead creation.
const PurposeInitialContact = "initial_contact"

// LeadDispatchPayload identifies the lead whose outbound contact the worker
// must perform. The payload deliberately carries identifiers only: the
// worker re-reads the lead at execution time so a retry always acts on
// current state.
type LeadDispatchPayload struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
	Purpose  string `json:"purpose"`
}

// TaskHandle describes an enqueued unit of work.
type TaskHandle struct {
	ID        string
	Type      string
	Queue     string
	Duplicate bool // true when an identical task was already in flight
}

// DispatchTaskID builds the uniqueness key for a dispatch task. The queue
// rejects a second enqueue with the same ID while the first is pending or
// in flight, so concurrent triggers cannot produce duplicate sends.
func DispatchTaskID(leadID uuid.UUID, purpose string) string {
	return "dispatch:" + leadID.String() + ":" + purpose
}

func NewLeadDispatchTask(payload LeadDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadDispatch, data), nil
}

func ParseLeadDispatchPayload(task *asynq.Task) (LeadDispatchPayload, error) {
	var payload LeadDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadDispatchPayload{}, err
	}
	return payload, nil
}
