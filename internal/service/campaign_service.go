// internal/service/campaign_service.go
package service

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/model"
	"github.com/textpulse/textpulse-backend/internal/repository"
	"github.com/textpulse/textpulse-backend/internal/scheduler"
	"github.com/textpulse/textpulse-backend/internal/template"
)

// TaskScheduler is the scheduler surface the orchestration layer drives.
type TaskScheduler interface {
	ScheduleCampaign(campaign *model.Campaign, customers []*model.Customer) (*model.ScheduledTask, error)
	CancelTask(taskID string) error
	FindPendingCampaignTask(campaignID int) *model.ScheduledTask
	GetTasksForUser(userID int) []*model.ScheduledTask
	GetUpcomingTasks(userID int, limit int) []*model.ScheduledTask
	GetTaskStats(userID int) scheduler.TaskStats
}

// JobInspector is the queue surface the orchestration layer reads and
// cancels through.
type JobInspector interface {
	GetJobs(userID int) []*model.CampaignJob
	GetJob(jobID string) (*model.CampaignJob, error)
	FindActiveJobByCampaign(campaignID int) *model.CampaignJob
	CancelJob(jobID string) error
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	Scheduler    TaskScheduler
	Queue        JobInspector
	Logger       *zap.SugaredLogger

	validate *validator.Validate
}

func NewCampaignService(
	campaignRepo repository.CampaignRepositoryInterface,
	customerRepo repository.CustomerRepositoryInterface,
	sched TaskScheduler,
	queue JobInspector,
	log *zap.SugaredLogger,
) *CampaignService {
	return &CampaignService{
		CampaignRepo: campaignRepo,
		CustomerRepo: customerRepo,
		Scheduler:    sched,
		Queue:        queue,
		Logger:       log,
		validate:     validator.New(),
	}
}

type scheduleCampaignInput struct {
	CampaignID  int    `validate:"required,gt=0"`
	UserID      int    `validate:"required,gt=0"`
	MessageBody string `validate:"required"`
	Recipients  int    `validate:"required,gt=0"`
}

// ScheduleCampaign validates the campaign and delegates to the scheduler.
// Validation failures surface synchronously; nothing is silently dropped.
func (s *CampaignService) ScheduleCampaign(campaign *model.Campaign, customers []*model.Customer) (*model.ScheduledTask, error) {
	input := scheduleCampaignInput{
		CampaignID:  campaign.ID,
		UserID:      campaign.UserID,
		MessageBody: strings.TrimSpace(campaign.MessageBody),
		Recipients:  len(customers),
	}
	if err := s.validate.Struct(input); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return nil, appErrors.NewValidation(verrs[0].Field(), "missing or invalid")
		}
		return nil, appErrors.NewValidation("", err.Error())
	}

	if err := s.CampaignRepo.SetTotalRecipients(campaign.ID, len(customers)); err != nil {
		s.Logger.Warnw("failed to persist recipient count", "campaign_id", campaign.ID, "error", err)
	}

	task, err := s.Scheduler.ScheduleCampaign(campaign, customers)
	if err != nil {
		return nil, err
	}

	if campaign.ScheduledAt != nil && campaign.ScheduledAt.After(time.Now()) {
		if err := s.CampaignRepo.UpdateStatus(campaign.ID, model.CampaignStatusScheduled); err != nil {
			s.Logger.Warnw("failed to mark campaign scheduled", "campaign_id", campaign.ID, "error", err)
		}
	}
	return task, nil
}

// RescheduleCampaign cancels the campaign's existing pending task (a no-op
// when none exists), moves the scheduled time, and schedules again. The net
// effect is exactly one active task per campaign.
func (s *CampaignService) RescheduleCampaign(campaign *model.Campaign, customers []*model.Customer, newTime time.Time) (*model.ScheduledTask, error) {
	if existing := s.Scheduler.FindPendingCampaignTask(campaign.ID); existing != nil {
		if err := s.Scheduler.CancelTask(existing.ID); err != nil {
			return nil, err
		}
	} else if job := s.Queue.FindActiveJobByCampaign(campaign.ID); job != nil {
		// Orphaned job without a pending task; cancel it so the fresh
		// schedule is the only active run.
		if err := s.Queue.CancelJob(job.ID); err != nil {
			return nil, err
		}
	}

	campaign.ScheduledAt = &newTime
	if err := s.CampaignRepo.UpdateScheduledAt(campaign.ID, &newTime); err != nil {
		return nil, err
	}

	return s.ScheduleCampaign(campaign, customers)
}

// CancelScheduledCampaign cancels both the scheduler task and the queue job
// for the campaign. Calling it when neither exists, or calling it twice, is
// a safe no-op.
func (s *CampaignService) CancelScheduledCampaign(campaignID, userID int) error {
	cancelled := false

	if task := s.Scheduler.FindPendingCampaignTask(campaignID); task != nil {
		if err := s.Scheduler.CancelTask(task.ID); err != nil {
			return err
		}
		cancelled = true
	} else if job := s.Queue.FindActiveJobByCampaign(campaignID); job != nil {
		if err := s.Queue.CancelJob(job.ID); err != nil {
			return err
		}
		cancelled = true
	}

	if cancelled {
		s.Logger.Infow("scheduled campaign cancelled", "campaign_id", campaignID, "user_id", userID)
	}
	return nil
}

// SendCampaign resolves the campaign and its recipients, then schedules the
// send. An empty customerIDs list targets all of the owner's customers. A
// scheduledAt in the future defers the send; nil or past sends immediately.
func (s *CampaignService) SendCampaign(campaignID int, customerIDs []int, scheduledAt *time.Time) (*model.ScheduledTask, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	if scheduledAt != nil {
		campaign.ScheduledAt = scheduledAt
		if err := s.CampaignRepo.UpdateScheduledAt(campaign.ID, scheduledAt); err != nil {
			return nil, err
		}
	}

	customers, err := s.resolveRecipients(campaign.UserID, customerIDs)
	if err != nil {
		return nil, err
	}
	return s.ScheduleCampaign(campaign, customers)
}

// RescheduleCampaignByID is the ID-based form of RescheduleCampaign used by
// the HTTP layer.
func (s *CampaignService) RescheduleCampaignByID(campaignID int, customerIDs []int, newTime time.Time) (*model.ScheduledTask, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	customers, err := s.resolveRecipients(campaign.UserID, customerIDs)
	if err != nil {
		return nil, err
	}
	return s.RescheduleCampaign(campaign, customers, newTime)
}

func (s *CampaignService) resolveRecipients(userID int, customerIDs []int) ([]*model.Customer, error) {
	if len(customerIDs) > 0 {
		return s.CustomerRepo.ListByIDs(customerIDs)
	}
	return s.CustomerRepo.ListByUser(userID)
}

// RenderPreview renders the campaign template (or an override) against one
// customer's fields.
func (s *CampaignService) RenderPreview(campaignID, customerID int, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	customer, err := s.CustomerRepo.GetByID(customerID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", appErrors.NewValidation("customer_id", "customer not found")
	}

	body := campaign.MessageBody
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		body = *overrideTemplate
	}
	if strings.TrimSpace(body) == "" {
		return "", appErrors.NewValidation("message_body", "template cannot be empty")
	}

	return template.Render(body, customer), nil
}

func (s *CampaignService) CreateCampaign(userID int, name, messageBody string, scheduledAt *string) (*model.Campaign, error) {
	c := &model.Campaign{
		UserID:      userID,
		Name:        name,
		MessageBody: messageBody,
		Status:      model.CampaignStatusDraft,
	}

	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, appErrors.NewValidation("scheduled_at", "must be RFC3339")
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches a user's campaigns with pagination.
func (s *CampaignService) ListCampaigns(userID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, userID, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// CampaignDetails is a campaign plus its live delivery stats.
type CampaignDetails struct {
	Campaign *model.Campaign    `json:"campaign"`
	Stats    map[string]int     `json:"stats"`
	Job      *model.CampaignJob `json:"job,omitempty"`
}

// GetCampaignDetailsWithStats combines the persisted campaign record with
// the live counts of its active job, when one exists.
func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":     campaign.TotalRecipients,
		"pending":   0,
		"sent":      campaign.SentCount,
		"delivered": campaign.DeliveredCount,
		"failed":    campaign.FailedCount,
	}

	details := &CampaignDetails{Campaign: campaign, Stats: stats}

	if job := s.Queue.FindActiveJobByCampaign(campaignID); job != nil {
		counts := job.Counts()
		stats["total"] = counts.Total
		stats["pending"] = counts.Pending
		stats["sent"] = counts.Sent
		stats["delivered"] = counts.Delivered
		stats["failed"] = counts.Failed
		details.Job = job
	}

	return details, nil
}
