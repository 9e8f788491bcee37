// internal/scheduler/store.go
package scheduler

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/model"
)

// TaskStore holds scheduled tasks. Tasks are never physically deleted;
// terminal tasks stay behind for inspection. The in-memory implementation is
// the documented single-instance tradeoff — state is lost on restart.
type TaskStore interface {
	Create(task *model.ScheduledTask) error
	// Get returns a copy of the task.
	Get(id string) (*model.ScheduledTask, error)
	// Update applies fn to the stored task under the store lock.
	Update(id string, fn func(*model.ScheduledTask)) error
	// ListDue returns copies of pending tasks with scheduledAt <= now.
	ListDue(now time.Time) []*model.ScheduledTask
	// List returns copies of every task.
	List() []*model.ScheduledTask
	// FindPendingByCampaign returns the campaign's pending task, or nil.
	FindPendingByCampaign(campaignID int) *model.ScheduledTask
}

// InMemoryTaskStore keeps tasks in a process-wide map for the process
// lifetime.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*model.ScheduledTask
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[string]*model.ScheduledTask)}
}

func (s *InMemoryTaskStore) Create(task *model.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *InMemoryTaskStore) Get(id string) (*model.ScheduledTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, appErrors.NewTaskNotFound(id)
	}
	cp := *task
	return &cp, nil
}

func (s *InMemoryTaskStore) Update(id string, fn func(*model.ScheduledTask)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return appErrors.NewTaskNotFound(id)
	}
	fn(task)
	return nil
}

func (s *InMemoryTaskStore) ListDue(now time.Time) []*model.ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ScheduledTask
	for _, task := range s.tasks {
		if task.Status == model.TaskStatusPending && !task.ScheduledAt.After(now) {
			cp := *task
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func (s *InMemoryTaskStore) List() []*model.ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ScheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		cp := *task
		out = append(out, &cp)
	}
	return out
}

func (s *InMemoryTaskStore) FindPendingByCampaign(campaignID int) *model.ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, task := range s.tasks {
		if task.Type == model.TaskTypeCampaign && task.CampaignID == campaignID && task.Status == model.TaskStatusPending {
			cp := *task
			return &cp
		}
	}
	return nil
}

var _ TaskStore = (*InMemoryTaskStore)(nil)
