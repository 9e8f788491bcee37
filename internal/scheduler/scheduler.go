// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/metrics"
	"github.com/textpulse/textpulse-backend/internal/model"
)

// JobQueue is the slice of the campaign queue the scheduler coordinates
// with: campaign tasks enqueue jobs at registration time and cancel them on
// task cancellation.
type JobQueue interface {
	Enqueue(campaign *model.Campaign, customers []*model.Customer) (*model.CampaignJob, error)
	CancelJob(jobID string) error
	FindActiveJobByCampaign(campaignID int) *model.CampaignJob
}

// Notifier delivers reminder notifications. The production implementation
// lives with the external collaborators; tests use a recording fake.
type Notifier interface {
	SendReminder(ctx context.Context, userID int, phone, message string) error
}

// TaskStats counts a user's tasks by status.
type TaskStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Scheduler holds scheduled tasks and sweeps for due ones on a fixed
// interval. Campaign tasks are bookkeeping: their jobs are enqueued at
// registration time and the queue itself defers processing until due, so the
// sweep only settles their task records. Reminder and cleanup tasks are
// executed by the sweep directly.
type Scheduler struct {
	store    TaskStore
	queue    JobQueue
	notifier Notifier
	cleanups *CleanupRegistry
	interval time.Duration
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sweepMu makes the no-overlapping-sweep invariant structural: a tick
	// that fires while a sweep is still running skips instead of queueing.
	sweepMu sync.Mutex
}

func New(store TaskStore, queue JobQueue, notifier Notifier, cleanups *CleanupRegistry, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if cleanups == nil {
		cleanups = NewCleanupRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:    store,
		queue:    queue,
		notifier: notifier,
		cleanups: cleanups,
		interval: interval,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the sweep loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Infow("task scheduler started", "sweep_interval", s.interval)
}

// Stop cancels the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Infow("task scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep collects due pending tasks and processes each. Overlapping sweeps
// are skipped rather than serialized; sweep duration is expected to stay
// well under the interval.
func (s *Scheduler) Sweep(now time.Time) {
	if !s.sweepMu.TryLock() {
		s.logger.Debugw("sweep already in progress, skipping tick")
		return
	}
	defer s.sweepMu.Unlock()

	start := time.Now()
	metrics.SweepRuns.Inc()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	due := s.store.ListDue(now)
	for _, task := range due {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		s.processTask(task)
	}
}

// processTask executes one due task and settles its status exactly once.
func (s *Scheduler) processTask(task *model.ScheduledTask) {
	var err error
	switch task.Type {
	case model.TaskTypeCampaign:
		err = s.processCampaignTask(task)
	case model.TaskTypeReminder:
		err = s.processReminderTask(task)
	case model.TaskTypeCleanup:
		err = s.processCleanupTask(task)
	default:
		err = errors.Newf("unknown task type %q", task.Type)
	}

	outcome := "completed"
	status := model.TaskStatusCompleted
	errMsg := ""
	if err != nil {
		outcome = "failed"
		status = model.TaskStatusFailed
		errMsg = err.Error()
		s.logger.Errorw("scheduled task failed",
			"task_id", task.ID,
			"type", task.Type,
			"error", err)
	}
	metrics.TasksProcessed.WithLabelValues(string(task.Type), outcome).Inc()

	_ = s.store.Update(task.ID, func(t *model.ScheduledTask) {
		if t.Status != model.TaskStatusPending {
			return
		}
		t.Status = status
		t.Error = errMsg
		t.UpdatedAt = time.Now()
	})
}

// processCampaignTask is bookkeeping: the job was enqueued at registration
// time and the queue gates its own timing. The sweep only verifies the job
// still exists before settling the task.
func (s *Scheduler) processCampaignTask(task *model.ScheduledTask) error {
	if s.queue.FindActiveJobByCampaign(task.CampaignID) != nil {
		return nil
	}
	// The job may already have run to completion between registration and
	// this sweep; a terminal job is not an error.
	return nil
}

func (s *Scheduler) processReminderTask(task *model.ScheduledTask) error {
	var payload model.ReminderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return errors.Wrap(err, "invalid reminder payload")
	}
	if s.notifier == nil {
		return errors.New("no notifier configured")
	}
	if err := s.notifier.SendReminder(s.ctx, task.UserID, payload.Phone, payload.Message); err != nil {
		return errors.Wrap(err, "failed to send reminder")
	}
	return nil
}

func (s *Scheduler) processCleanupTask(task *model.ScheduledTask) error {
	var payload model.CleanupPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return errors.Wrap(err, "invalid cleanup payload")
	}
	return s.cleanups.Run(s.ctx, payload.Kind)
}

// ScheduleCampaign records a campaign task and enqueues the send job
// immediately. The job's own StartAt defers processing until the scheduled
// time, so a future scheduledAt never starts sends early.
func (s *Scheduler) ScheduleCampaign(campaign *model.Campaign, customers []*model.Customer) (*model.ScheduledTask, error) {
	if _, err := s.queue.Enqueue(campaign, customers); err != nil {
		return nil, err
	}

	now := time.Now()
	scheduledAt := now
	if campaign.ScheduledAt != nil {
		scheduledAt = *campaign.ScheduledAt
	}

	task := &model.ScheduledTask{
		ID:          uuid.NewString(),
		Type:        model.TaskTypeCampaign,
		CampaignID:  campaign.ID,
		UserID:      campaign.UserID,
		ScheduledAt: scheduledAt,
		Status:      model.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(task); err != nil {
		return nil, err
	}

	s.logger.Infow("campaign scheduled",
		"task_id", task.ID,
		"campaign_id", campaign.ID,
		"scheduled_at", scheduledAt,
		"recipients", len(customers))
	return task, nil
}

// ScheduleReminder records a reminder task executed by the sweep when due.
func (s *Scheduler) ScheduleReminder(userID int, payload model.ReminderPayload, at time.Time) (*model.ScheduledTask, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal reminder payload")
	}
	return s.createTask(model.TaskTypeReminder, 0, userID, body, at)
}

// ScheduleCleanup records a maintenance task executed by the sweep when due.
func (s *Scheduler) ScheduleCleanup(kind model.CleanupKind, at time.Time) (*model.ScheduledTask, error) {
	body, err := json.Marshal(model.CleanupPayload{Kind: kind})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal cleanup payload")
	}
	return s.createTask(model.TaskTypeCleanup, 0, 0, body, at)
}

func (s *Scheduler) createTask(typ model.TaskType, campaignID, userID int, payload []byte, at time.Time) (*model.ScheduledTask, error) {
	now := time.Now()
	task := &model.ScheduledTask{
		ID:          uuid.NewString(),
		Type:        typ,
		CampaignID:  campaignID,
		UserID:      userID,
		ScheduledAt: at,
		Status:      model.TaskStatusPending,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(task); err != nil {
		return nil, err
	}
	return task, nil
}

// CancelTask cancels a pending task. Campaign tasks also cancel the
// corresponding queue job so a cancelled schedule entry never leaves an
// orphaned running job.
func (s *Scheduler) CancelTask(taskID string) error {
	task, err := s.store.Get(taskID)
	if err != nil {
		return err
	}
	if task.Status != model.TaskStatusPending {
		return appErrors.NewTaskNotPending(taskID, string(task.Status))
	}

	if err := s.store.Update(taskID, func(t *model.ScheduledTask) {
		if t.Status != model.TaskStatusPending {
			return
		}
		t.Status = model.TaskStatusCancelled
		t.UpdatedAt = time.Now()
	}); err != nil {
		return err
	}

	if task.Type == model.TaskTypeCampaign {
		if job := s.queue.FindActiveJobByCampaign(task.CampaignID); job != nil {
			if err := s.queue.CancelJob(job.ID); err != nil {
				return errors.Wrapf(err, "task %s cancelled but job %s could not be", taskID, job.ID)
			}
		}
	}

	s.logger.Infow("scheduled task cancelled", "task_id", taskID, "type", task.Type)
	return nil
}

// FindPendingCampaignTask returns the campaign's pending task, or nil.
func (s *Scheduler) FindPendingCampaignTask(campaignID int) *model.ScheduledTask {
	return s.store.FindPendingByCampaign(campaignID)
}

// GetTask returns a copy of the task.
func (s *Scheduler) GetTask(taskID string) (*model.ScheduledTask, error) {
	return s.store.Get(taskID)
}

// GetPendingTasks returns every pending task, soonest first.
func (s *Scheduler) GetPendingTasks() []*model.ScheduledTask {
	var out []*model.ScheduledTask
	for _, task := range s.store.List() {
		if task.Status == model.TaskStatusPending {
			out = append(out, task)
		}
	}
	sortByScheduledAt(out)
	return out
}

// GetTasksForUser returns all of a user's tasks, soonest first.
func (s *Scheduler) GetTasksForUser(userID int) []*model.ScheduledTask {
	var out []*model.ScheduledTask
	for _, task := range s.store.List() {
		if task.UserID == userID {
			out = append(out, task)
		}
	}
	sortByScheduledAt(out)
	return out
}

// GetUpcomingTasks returns the user's strictly-future pending tasks,
// ascending by scheduled time, capped at limit.
func (s *Scheduler) GetUpcomingTasks(userID int, limit int) []*model.ScheduledTask {
	now := time.Now()
	var out []*model.ScheduledTask
	for _, task := range s.store.List() {
		if task.UserID == userID && task.Status == model.TaskStatusPending && task.ScheduledAt.After(now) {
			out = append(out, task)
		}
	}
	sortByScheduledAt(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetTaskStats counts the user's tasks by status.
func (s *Scheduler) GetTaskStats(userID int) TaskStats {
	var stats TaskStats
	for _, task := range s.store.List() {
		if task.UserID != userID {
			continue
		}
		switch task.Status {
		case model.TaskStatusPending:
			stats.Pending++
		case model.TaskStatusCompleted:
			stats.Completed++
		case model.TaskStatusFailed:
			stats.Failed++
		case model.TaskStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func sortByScheduledAt(tasks []*model.ScheduledTask) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
	})
}
