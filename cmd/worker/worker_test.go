// cmd/worker/worker_test.go
package main

import (
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpulse/textpulse-backend/internal/model"
	"github.com/textpulse/textpulse-backend/internal/queue"
	"github.com/textpulse/textpulse-backend/internal/repository"
)

type fakeReportRepo struct {
	rows    []*repository.DeliveryReportRow
	rollups []int
}

func (f *fakeReportRepo) Insert(row *repository.DeliveryReportRow) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeReportRepo) CountByStatus(campaignID int) (map[string]int, error) { return nil, nil }

func (f *fakeReportRepo) CampaignIDsReportedSince(since time.Time) ([]int, error) { return nil, nil }

func (f *fakeReportRepo) PruneBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (f *fakeReportRepo) PruneFailedBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (f *fakeReportRepo) RollupCampaignCounters(campaignID int) error {
	f.rollups = append(f.rollups, campaignID)
	return nil
}

var _ repository.DeliveryReportRepositoryInterface = (*fakeReportRepo)(nil)

func TestPersistReportInsertsAndRollsUp(t *testing.T) {
	repo := &fakeReportRepo{}

	err := persistReport(repo, queue.DeliveryReport{
		JobID:      "job-1",
		CampaignID: 7,
		MessageID:  "msg-1",
		CustomerID: 3,
		Phone:      "+12025550101",
		Status:     model.MessageStatusDelivered,
	})
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "msg-1", repo.rows[0].MessageID)
	assert.Equal(t, "delivered", repo.rows[0].Status)
	assert.False(t, repo.rows[0].ReportedAt.IsZero(), "missing timestamp defaults to now")
	assert.Equal(t, []int{7}, repo.rollups)
}

func TestRetryAttemptsHeaderForms(t *testing.T) {
	assert.EqualValues(t, 0, retryAttempts(nil))
	assert.EqualValues(t, 0, retryAttempts(amqp.Table{}))
	assert.EqualValues(t, 2, retryAttempts(amqp.Table{"x-retry-count": int32(2)}))
	assert.EqualValues(t, 5, retryAttempts(amqp.Table{"x-retry-count": int64(5)}))
	assert.EqualValues(t, 0, retryAttempts(amqp.Table{"x-retry-count": "3"}), "non-integer header is ignored")
}
