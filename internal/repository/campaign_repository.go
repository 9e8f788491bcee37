// internal/repository/campaign_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, userID int, status string) ([]*model.Campaign, int, error)
	Update(c *model.Campaign) error
	UpdateStatus(campaignID int, status model.CampaignStatus) error
	UpdateScheduledAt(campaignID int, scheduledAt *time.Time) error
	UpdateDeliveryCounters(campaignID, sent, delivered, failed int) error
	SetTotalRecipients(campaignID, total int) error
	Delete(campaignID int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO campaigns (user_id, name, message_body, status, scheduled_at, total_recipients, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.UserID, c.Name, c.MessageBody, c.Status, c.ScheduledAt, c.TotalRecipients, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, user_id, name, message_body, status, scheduled_at,
               total_recipients, sent_count, delivered_count, failed_count,
               created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.MessageBody, &c.Status, &c.ScheduledAt,
		&c.TotalRecipients, &c.SentCount, &c.DeliveredCount, &c.FailedCount,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, userID int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `
        SELECT id, user_id, name, message_body, status, scheduled_at,
               total_recipients, sent_count, delivered_count, failed_count,
               created_at, updated_at
        FROM campaigns WHERE user_id=$1`
	args := []interface{}{userID}
	argPos := 2

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Name, &c.MessageBody, &c.Status, &c.ScheduledAt,
			&c.TotalRecipients, &c.SentCount, &c.DeliveredCount, &c.FailedCount,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE user_id=$1`
	countArgs := []interface{}{userID}
	if status != "" {
		countQuery += " AND status=$2"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, message_body=$2, status=$3, scheduled_at=$4, updated_at=NOW()
        WHERE id=$5
    `
	_, err := r.DB.Exec(query, c.Name, c.MessageBody, c.Status, c.ScheduledAt, c.ID)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) UpdateScheduledAt(campaignID int, scheduledAt *time.Time) error {
	query := `UPDATE campaigns SET scheduled_at=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, scheduledAt, campaignID)
	return err
}

func (r *CampaignRepository) UpdateDeliveryCounters(campaignID, sent, delivered, failed int) error {
	query := `
        UPDATE campaigns
        SET sent_count=$1, delivered_count=$2, failed_count=$3, updated_at=NOW()
        WHERE id=$4
    `
	_, err := r.DB.Exec(query, sent, delivered, failed, campaignID)
	return err
}

func (r *CampaignRepository) SetTotalRecipients(campaignID, total int) error {
	query := `UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, total, campaignID)
	return err
}

// Delete removes a campaign. Campaigns that are sending or already sent are
// kept for their delivery history.
func (r *CampaignRepository) Delete(campaignID int) error {
	c, err := r.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignStatusSending || c.Status == model.CampaignStatusCompleted {
		return fmt.Errorf("campaign %d cannot be deleted while %s", campaignID, c.Status)
	}
	_, err = r.DB.Exec(`DELETE FROM campaigns WHERE id=$1`, campaignID)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
