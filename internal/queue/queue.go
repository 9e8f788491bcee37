// internal/queue/queue.go
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/metrics"
	"github.com/textpulse/textpulse-backend/internal/model"
	"github.com/textpulse/textpulse-backend/internal/sms"
	"github.com/textpulse/textpulse-backend/internal/template"
)

// CampaignUpdater is the slice of the campaign repository the queue needs to
// reconcile campaign-level status and counters.
type CampaignUpdater interface {
	UpdateStatus(campaignID int, status model.CampaignStatus) error
	UpdateDeliveryCounters(campaignID, sent, delivered, failed int) error
}

// Config controls queue processing behavior.
type Config struct {
	// BatchSize messages are handed to the transport per processing step.
	BatchSize int
	// MaxRetries bounds per-message retry attempts before terminal failure.
	MaxRetries int
	// RetryBackoff is multiplied by the retry round for the inter-round wait.
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// CampaignQueue owns the per-campaign send runs: it builds recipient
// messages, defers processing until a job is due, throttles sends through
// the transport, and tracks per-message state.
type CampaignQueue struct {
	store     JobStore
	sender    sms.Sender
	campaigns CampaignUpdater // optional
	broker    ReportBroker    // optional
	cfg       Config
	logger    *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	jobCancels map[string]context.CancelFunc

	// enqueueMu serializes the active-job check with job creation so
	// concurrent enqueues for one campaign cannot both pass the guard.
	enqueueMu sync.Mutex
}

func NewCampaignQueue(store JobStore, sender sms.Sender, campaigns CampaignUpdater, broker ReportBroker, cfg Config, log *zap.SugaredLogger) *CampaignQueue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CampaignQueue{
		store:      store,
		sender:     sender,
		campaigns:  campaigns,
		broker:     broker,
		cfg:        cfg,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		jobCancels: make(map[string]context.CancelFunc),
	}
}

// Close stops all dispatchers and waits for in-flight batches to settle.
func (q *CampaignQueue) Close() {
	q.cancel()
	q.wg.Wait()
}

// Enqueue builds one message per customer by rendering the campaign template
// and schedules the job for processing. Processing is deferred until the
// campaign's scheduled time; the scheduler never gates job timing. A second
// enqueue for a campaign whose prior job is non-terminal is rejected.
func (q *CampaignQueue) Enqueue(campaign *model.Campaign, customers []*model.Customer) (*model.CampaignJob, error) {
	q.enqueueMu.Lock()
	defer q.enqueueMu.Unlock()

	if active := q.store.FindActiveByCampaign(campaign.ID); active != nil {
		return nil, appErrors.NewJobAlreadyActive(campaign.ID, active.ID)
	}

	now := time.Now()
	startAt := now
	if campaign.ScheduledAt != nil && campaign.ScheduledAt.After(now) {
		startAt = *campaign.ScheduledAt
	}

	job := &model.CampaignJob{
		ID:         uuid.NewString(),
		CampaignID: campaign.ID,
		UserID:     campaign.UserID,
		Status:     model.JobStatusPending,
		StartAt:    startAt,
		CreatedAt:  now,
		UpdatedAt:  now,
		Messages:   make([]model.CampaignMessage, 0, len(customers)),
	}

	for _, c := range customers {
		msg := model.CampaignMessage{
			ID:         uuid.NewString(),
			CustomerID: c.ID,
			Phone:      sms.FormatPhoneNumber(c.Phone),
			Body:       template.Render(campaign.MessageBody, c),
			Status:     model.MessageStatusPending,
		}
		if !sms.ValidatePhoneNumber(c.Phone) {
			msg.Status = model.MessageStatusFailed
			msg.LastError = "invalid phone number"
		}
		job.Messages = append(job.Messages, msg)
	}

	if err := q.store.Create(job); err != nil {
		return nil, err
	}
	metrics.JobsEnqueued.Inc()

	// Recipients rejected at validation never reach the transport, so they
	// get their failure accounting here.
	for i := range job.Messages {
		m := &job.Messages[i]
		if m.Status != model.MessageStatusFailed {
			continue
		}
		metrics.MessagesFailed.Inc()
		if q.broker == nil {
			continue
		}
		report := DeliveryReport{
			JobID:      job.ID,
			CampaignID: campaign.ID,
			MessageID:  m.ID,
			CustomerID: m.CustomerID,
			Phone:      m.Phone,
			Status:     model.MessageStatusFailed,
			ErrorCode:  sms.ErrorCodeInvalidNumber,
			ReportedAt: now,
		}
		if err := q.broker.Publish(report); err != nil {
			q.logger.Warnw("failed to publish delivery report", "job_id", job.ID, "message_id", m.ID, "error", err)
		}
	}

	jobCtx, jobCancel := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.jobCancels[job.ID] = jobCancel
	q.mu.Unlock()

	q.wg.Add(1)
	go q.dispatch(jobCtx, job.ID, startAt)

	q.logger.Infow("campaign job enqueued",
		"job_id", job.ID,
		"campaign_id", campaign.ID,
		"recipients", len(job.Messages),
		"start_at", startAt)

	return q.store.Get(job.ID)
}

// CancelJob stops a pending or running job. Still-pending messages are
// marked cancelled and never sent; already-sent messages are left as-is.
func (q *CampaignQueue) CancelJob(jobID string) error {
	job, err := q.store.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending && job.Status != model.JobStatusRunning {
		return appErrors.NewJobNotCancellable(jobID, string(job.Status))
	}

	err = q.store.Update(jobID, func(j *model.CampaignJob) {
		j.Status = model.JobStatusCancelled
		j.UpdatedAt = time.Now()
		for i := range j.Messages {
			if j.Messages[i].Status == model.MessageStatusPending {
				j.Messages[i].Cancelled = true
			}
		}
	})
	if err != nil {
		return err
	}

	q.mu.Lock()
	if cancel, ok := q.jobCancels[jobID]; ok {
		cancel()
	}
	q.mu.Unlock()

	q.reconcileCampaign(jobID)
	q.logger.Infow("campaign job cancelled", "job_id", jobID, "campaign_id", job.CampaignID)
	return nil
}

// GetJob returns a copy of the job.
func (q *CampaignQueue) GetJob(jobID string) (*model.CampaignJob, error) {
	return q.store.Get(jobID)
}

// GetJobs returns the user's jobs, newest first.
func (q *CampaignQueue) GetJobs(userID int) []*model.CampaignJob {
	return q.store.ListByUser(userID)
}

// FindActiveJobByCampaign returns the campaign's non-terminal job, or nil.
func (q *CampaignQueue) FindActiveJobByCampaign(campaignID int) *model.CampaignJob {
	return q.store.FindActiveByCampaign(campaignID)
}

// dispatch waits until the job is due, then processes it. Runs in its own
// goroutine per job.
func (q *CampaignQueue) dispatch(ctx context.Context, jobID string, startAt time.Time) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.jobCancels, jobID)
		q.mu.Unlock()
	}()

	if wait := time.Until(startAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	// The job may have been cancelled while waiting.
	started := false
	err := q.store.Update(jobID, func(j *model.CampaignJob) {
		if j.Status != model.JobStatusPending {
			return
		}
		now := time.Now()
		j.Status = model.JobStatusRunning
		j.StartedAt = &now
		j.UpdatedAt = now
		started = true
	})
	if err != nil || !started {
		return
	}

	if q.campaigns != nil {
		if err := q.campaigns.UpdateStatus(jobCampaignID(q.store, jobID), model.CampaignStatusSending); err != nil {
			q.logger.Warnw("failed to mark campaign sending", "job_id", jobID, "error", err)
		}
	}

	q.process(ctx, jobID)
}

// process sends the job's messages batch by batch, retrying failed sends up
// to the retry ceiling. Cancellation is cooperative: it is observed between
// batches, after the in-flight batch settles.
func (q *CampaignQueue) process(ctx context.Context, jobID string) {
	round := 0
	for {
		batch := q.nextBatch(jobID, round)
		if len(batch) == 0 {
			if q.hasRetryableFailures(jobID, round) {
				round++
				if !q.sleepBackoff(ctx, round) {
					return
				}
				continue
			}
			q.finish(jobID, model.JobStatusCompleted, "")
			return
		}

		outbound := make([]*model.SMSMessage, len(batch))
		for i, m := range batch {
			outbound[i] = &model.SMSMessage{To: m.Phone, Body: m.Body}
		}

		results, err := q.sender.SendBatch(ctx, outbound)
		q.applyResults(jobID, batch, results)

		if err != nil {
			// Context cancelled mid-run; the job status already reflects
			// cancellation or shutdown. Untouched messages stay pending.
			return
		}

		if allProviderUnavailable(results) {
			q.finish(jobID, model.JobStatusFailed, "sms provider unavailable")
			return
		}

		job, getErr := q.store.Get(jobID)
		if getErr != nil || job.Status != model.JobStatusRunning {
			// Cancelled while the batch was in flight: results above were
			// still recorded, nothing further is dequeued.
			return
		}
	}
}

// nextBatch collects up to BatchSize messages still eligible for sending in
// the current retry round.
func (q *CampaignQueue) nextBatch(jobID string, round int) []model.CampaignMessage {
	job, err := q.store.Get(jobID)
	if err != nil {
		return nil
	}
	var batch []model.CampaignMessage
	for _, m := range job.Messages {
		if m.Status != model.MessageStatusPending || m.Cancelled {
			continue
		}
		if m.RetryCount != round {
			continue
		}
		batch = append(batch, m)
		if len(batch) == q.cfg.BatchSize {
			break
		}
	}
	return batch
}

// hasRetryableFailures reports whether any pending message is waiting for the
// next retry round.
func (q *CampaignQueue) hasRetryableFailures(jobID string, round int) bool {
	job, err := q.store.Get(jobID)
	if err != nil {
		return false
	}
	for _, m := range job.Messages {
		if m.Status == model.MessageStatusPending && !m.Cancelled && m.RetryCount > round {
			return true
		}
	}
	return false
}

// applyResults records transport results on the corresponding campaign
// messages. A failed send below the retry ceiling stays pending with its
// retry counter advanced; at the ceiling it becomes terminally failed.
func (q *CampaignQueue) applyResults(jobID string, batch []model.CampaignMessage, results []*model.SMSMessage) {
	now := time.Now()
	byID := make(map[string]*model.SMSMessage, len(results))
	for i, res := range results {
		if res == nil || i >= len(batch) {
			continue
		}
		byID[batch[i].ID] = res
	}

	_ = q.store.Update(jobID, func(j *model.CampaignJob) {
		for i := range j.Messages {
			m := &j.Messages[i]
			res, ok := byID[m.ID]
			if !ok {
				continue
			}
			switch res.Status {
			case model.MessageStatusSent, model.MessageStatusDelivered:
				m.Status = res.Status
				m.LastError = ""
			default:
				if res.ErrorCode == sms.ErrorCodeCancelled {
					// Never attempted; leave pending for cancellation
					// bookkeeping to settle.
					continue
				}
				m.LastError = res.ErrorMessage
				if m.RetryCount < q.cfg.MaxRetries {
					m.RetryCount++
					m.LastRetryAt = &now
					metrics.MessagesRetried.Inc()
				} else {
					m.Status = model.MessageStatusFailed
					metrics.MessagesFailed.Inc()
				}
			}
		}
		j.UpdatedAt = now
	})

	q.publishReports(jobID, batch, byID)
	q.reconcileCampaign(jobID)
}

// finish moves the job to a terminal status and reconciles the campaign.
func (q *CampaignQueue) finish(jobID string, status model.JobStatus, lastError string) {
	_ = q.store.Update(jobID, func(j *model.CampaignJob) {
		if j.Status != model.JobStatusRunning {
			return
		}
		now := time.Now()
		j.Status = status
		j.LastError = lastError
		j.CompletedAt = &now
		j.UpdatedAt = now
	})
	metrics.JobsCompleted.WithLabelValues(string(status)).Inc()
	q.reconcileCampaign(jobID)

	job, err := q.store.Get(jobID)
	if err != nil {
		return
	}
	counts := job.Counts()
	q.logger.Infow("campaign job finished",
		"job_id", jobID,
		"campaign_id", job.CampaignID,
		"status", job.Status,
		"sent", counts.Sent,
		"delivered", counts.Delivered,
		"failed", counts.Failed,
		"cancelled", counts.Cancelled)
}

// reconcileCampaign recomputes campaign-level counters from message state
// and writes them through. Counters are never incremented in place, so they
// cannot drift from the per-message truth.
func (q *CampaignQueue) reconcileCampaign(jobID string) {
	if q.campaigns == nil {
		return
	}
	job, err := q.store.Get(jobID)
	if err != nil {
		return
	}
	counts := job.Counts()
	if err := q.campaigns.UpdateDeliveryCounters(job.CampaignID, counts.Sent, counts.Delivered, counts.Failed); err != nil {
		q.logger.Warnw("failed to update campaign counters", "campaign_id", job.CampaignID, "error", err)
	}
	if job.Status.Terminal() {
		status := model.CampaignStatusCompleted
		switch job.Status {
		case model.JobStatusFailed:
			status = model.CampaignStatusFailed
		case model.JobStatusCancelled:
			status = model.CampaignStatusCancelled
		}
		if err := q.campaigns.UpdateStatus(job.CampaignID, status); err != nil {
			q.logger.Warnw("failed to update campaign status", "campaign_id", job.CampaignID, "error", err)
		}
	}
}

func (q *CampaignQueue) publishReports(jobID string, batch []model.CampaignMessage, results map[string]*model.SMSMessage) {
	if q.broker == nil {
		return
	}
	job, err := q.store.Get(jobID)
	if err != nil {
		return
	}
	for _, m := range batch {
		res, ok := results[m.ID]
		if !ok {
			continue
		}
		report := DeliveryReport{
			JobID:      jobID,
			CampaignID: job.CampaignID,
			MessageID:  m.ID,
			CustomerID: m.CustomerID,
			Phone:      m.Phone,
			Status:     res.Status,
			ErrorCode:  res.ErrorCode,
			ReportedAt: time.Now(),
		}
		if err := q.broker.Publish(report); err != nil {
			q.logger.Warnw("failed to publish delivery report", "job_id", jobID, "message_id", m.ID, "error", err)
		}
	}
}

func (q *CampaignQueue) sleepBackoff(ctx context.Context, round int) bool {
	backoff := q.cfg.RetryBackoff * time.Duration(round)
	if backoff <= 0 {
		return true
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func allProviderUnavailable(results []*model.SMSMessage) bool {
	if len(results) == 0 {
		return false
	}
	for _, res := range results {
		if res == nil || res.ErrorCode != sms.ErrorCodeProviderUnavailable {
			return false
		}
	}
	return true
}

func jobCampaignID(store JobStore, jobID string) int {
	job, err := store.Get(jobID)
	if err != nil {
		return 0
	}
	return job.CampaignID
}
