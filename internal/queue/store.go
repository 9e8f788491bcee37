// internal/queue/store.go
package queue

import (
	"sort"
	"sync"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/model"
)

// JobStore holds campaign jobs. The in-memory implementation backs the
// single-instance deployment; the interface exists so a durable store can be
// swapped in without touching the queue.
type JobStore interface {
	Create(job *model.CampaignJob) error
	// Get returns a copy of the job.
	Get(id string) (*model.CampaignJob, error)
	// Update applies fn to the stored job under the store lock.
	Update(id string, fn func(*model.CampaignJob)) error
	// ListByUser returns copies of the user's jobs, newest first.
	ListByUser(userID int) []*model.CampaignJob
	// FindActiveByCampaign returns the campaign's non-terminal job, or nil.
	FindActiveByCampaign(campaignID int) *model.CampaignJob
}

// InMemoryJobStore keeps jobs in a process-wide map for the process lifetime.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.CampaignJob
}

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[string]*model.CampaignJob)}
}

func (s *InMemoryJobStore) Create(job *model.CampaignJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *InMemoryJobStore) Get(id string) (*model.CampaignJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.NewJobNotFound(id)
	}
	return copyJob(job), nil
}

func (s *InMemoryJobStore) Update(id string, fn func(*model.CampaignJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return appErrors.NewJobNotFound(id)
	}
	fn(job)
	return nil
}

func (s *InMemoryJobStore) ListByUser(userID int) []*model.CampaignJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.CampaignJob
	for _, job := range s.jobs {
		if job.UserID == userID {
			out = append(out, copyJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *InMemoryJobStore) FindActiveByCampaign(campaignID int) *model.CampaignJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.CampaignID == campaignID && !job.Status.Terminal() {
			return copyJob(job)
		}
	}
	return nil
}

func copyJob(job *model.CampaignJob) *model.CampaignJob {
	out := *job
	out.Messages = make([]model.CampaignMessage, len(job.Messages))
	copy(out.Messages, job.Messages)
	return &out
}

var _ JobStore = (*InMemoryJobStore)(nil)
