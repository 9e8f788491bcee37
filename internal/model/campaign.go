// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the campaign can no longer change status.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed || s == CampaignStatusCancelled
}

type Campaign struct {
	ID              int            `db:"id" json:"id"`
	UserID          int            `db:"user_id" json:"user_id"`
	Name            string         `db:"name" json:"name"`
	MessageBody     string         `db:"message_body" json:"message_body"`
	Status          CampaignStatus `db:"status" json:"status"`
	ScheduledAt     *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	TotalRecipients int            `db:"total_recipients" json:"total_recipients"`
	SentCount       int            `db:"sent_count" json:"sent_count"`
	DeliveredCount  int            `db:"delivered_count" json:"delivered_count"`
	FailedCount     int            `db:"failed_count" json:"failed_count"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
