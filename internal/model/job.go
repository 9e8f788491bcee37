// internal/model/job.go
package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CampaignMessage is one recipient's entry in a send run. Status never leaves
// pending except through the queue's processing loop or cancellation.
type CampaignMessage struct {
	ID          string        `json:"id"`
	CustomerID  int           `json:"customer_id"`
	Phone       string        `json:"phone"`
	Body        string        `json:"body"`
	Status      MessageStatus `json:"status"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	LastRetryAt *time.Time    `json:"last_retry_at,omitempty"`
	Cancelled   bool          `json:"cancelled,omitempty"`
}

// JobCounts aggregates per-status message counts for a job. Always recomputed
// from the message list, never incremented in place.
type JobCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// CampaignJob is one queued send run for a campaign. At most one non-terminal
// job may exist per campaign at a time.
type CampaignJob struct {
	ID          string            `json:"id"`
	CampaignID  int               `json:"campaign_id"`
	UserID      int               `json:"user_id"`
	Status      JobStatus         `json:"status"`
	Messages    []CampaignMessage `json:"messages"`
	StartAt     time.Time         `json:"start_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Counts recomputes the aggregate message counts for the job. Messages marked
// cancelled count as cancelled even though their status field stays pending.
func (j *CampaignJob) Counts() JobCounts {
	c := JobCounts{Total: len(j.Messages)}
	for i := range j.Messages {
		m := &j.Messages[i]
		if m.Cancelled && m.Status == MessageStatusPending {
			c.Cancelled++
			continue
		}
		switch m.Status {
		case MessageStatusPending:
			c.Pending++
		case MessageStatusSent:
			c.Sent++
		case MessageStatusDelivered:
			c.Delivered++
		case MessageStatusFailed, MessageStatusUndelivered:
			c.Failed++
		}
	}
	return c
}
