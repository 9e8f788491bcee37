// internal/repository/delivery_report_repository.go
package repository

import (
	"database/sql"
	"time"
)

// DeliveryReportRow is the persisted form of a per-message delivery report,
// written by the reconciliation worker.
type DeliveryReportRow struct {
	ID         int       `db:"id"`
	JobID      string    `db:"job_id"`
	CampaignID int       `db:"campaign_id"`
	MessageID  string    `db:"message_id"`
	CustomerID int       `db:"customer_id"`
	Phone      string    `db:"phone"`
	Status     string    `db:"status"`
	ErrorCode  string    `db:"error_code"`
	ReportedAt time.Time `db:"reported_at"`
}

type DeliveryReportRepositoryInterface interface {
	Insert(row *DeliveryReportRow) error
	CountByStatus(campaignID int) (map[string]int, error)
	CampaignIDsReportedSince(since time.Time) ([]int, error)
	PruneBefore(cutoff time.Time) (int64, error)
	PruneFailedBefore(cutoff time.Time) (int64, error)
	RollupCampaignCounters(campaignID int) error
}

type DeliveryReportRepository struct {
	DB *sql.DB
}

// Insert upserts on message_id so a redelivered report overwrites the older
// status instead of duplicating the row.
func (r *DeliveryReportRepository) Insert(row *DeliveryReportRow) error {
	query := `
        INSERT INTO delivery_reports (job_id, campaign_id, message_id, customer_id, phone, status, error_code, reported_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (message_id) DO UPDATE
        SET status=EXCLUDED.status, error_code=EXCLUDED.error_code, reported_at=EXCLUDED.reported_at
    `
	_, err := r.DB.Exec(query, row.JobID, row.CampaignID, row.MessageID, row.CustomerID, row.Phone, row.Status, row.ErrorCode, row.ReportedAt)
	return err
}

func (r *DeliveryReportRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM delivery_reports WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sent": 0, "delivered": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CampaignIDsReportedSince lists campaigns with delivery activity after the
// given time, for counter rollups.
func (r *DeliveryReportRepository) CampaignIDsReportedSince(since time.Time) ([]int, error) {
	rows, err := r.DB.Query(`SELECT DISTINCT campaign_id FROM delivery_reports WHERE reported_at >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PruneBefore drops reports older than the cutoff. Idempotent.
func (r *DeliveryReportRepository) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM delivery_reports WHERE reported_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneFailedBefore drops terminally failed reports older than the cutoff.
// Idempotent.
func (r *DeliveryReportRepository) PruneFailedBefore(cutoff time.Time) (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM delivery_reports WHERE status IN ('failed', 'undelivered') AND reported_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RollupCampaignCounters recomputes a campaign's persisted counters from its
// delivery reports. Idempotent.
func (r *DeliveryReportRepository) RollupCampaignCounters(campaignID int) error {
	query := `
        UPDATE campaigns SET
            sent_count = (SELECT COUNT(*) FROM delivery_reports WHERE campaign_id=$1 AND status='sent'),
            delivered_count = (SELECT COUNT(*) FROM delivery_reports WHERE campaign_id=$1 AND status='delivered'),
            failed_count = (SELECT COUNT(*) FROM delivery_reports WHERE campaign_id=$1 AND status IN ('failed', 'undelivered')),
            updated_at = NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, campaignID)
	return err
}

var _ DeliveryReportRepositoryInterface = (*DeliveryReportRepository)(nil)
