// internal/model/task.go
package model

import "time"

type TaskType string

const (
	TaskTypeCampaign TaskType = "campaign"
	TaskTypeReminder TaskType = "reminder"
	TaskTypeCleanup  TaskType = "cleanup"
)

func (t TaskType) Valid() bool {
	return t == TaskTypeCampaign || t == TaskTypeReminder || t == TaskTypeCleanup
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the task has left pending. A task transitions out
// of pending exactly once.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// ReminderPayload is the payload carried by reminder tasks.
type ReminderPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// CleanupKind selects one of the maintenance routines run by cleanup tasks.
type CleanupKind string

const (
	CleanupKindLogPrune      CleanupKind = "log_prune"
	CleanupKindFailedPrune   CleanupKind = "failed_message_prune"
	CleanupKindMetricsRollup CleanupKind = "metrics_rollup"
)

// CleanupPayload is the payload carried by cleanup tasks.
type CleanupPayload struct {
	Kind CleanupKind `json:"kind"`
}

// ScheduledTask is a unit of future work held by the scheduler. Tasks live in
// process memory for the process lifetime and are never physically deleted;
// terminal tasks are kept for inspection.
type ScheduledTask struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	CampaignID  int        `json:"campaign_id,omitempty"`
	UserID      int        `json:"user_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      TaskStatus `json:"status"`
	Payload     []byte     `json:"payload,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
