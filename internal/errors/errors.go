// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrTaskNotFound indicates a scheduled task lookup by ID failed.
type ErrTaskNotFound struct {
	TaskID string
}

func (e *ErrTaskNotFound) Error() string {
	return fmt.Sprintf("scheduled task %s not found", e.TaskID)
}

func NewTaskNotFound(id string) error {
	return &ErrTaskNotFound{TaskID: id}
}

// ErrTaskNotPending indicates an operation legal only for pending tasks was
// attempted against a task that already left pending.
type ErrTaskNotPending struct {
	TaskID string
	Status string
}

func (e *ErrTaskNotPending) Error() string {
	return fmt.Sprintf("scheduled task %s is %s, not pending", e.TaskID, e.Status)
}

func NewTaskNotPending(id, status string) error {
	return &ErrTaskNotPending{TaskID: id, Status: status}
}

// ErrJobNotFound indicates a campaign job lookup by ID failed.
type ErrJobNotFound struct {
	JobID string
}

func (e *ErrJobNotFound) Error() string {
	return fmt.Sprintf("campaign job %s not found", e.JobID)
}

func NewJobNotFound(id string) error {
	return &ErrJobNotFound{JobID: id}
}

// ErrJobAlreadyActive rejects a second enqueue for a campaign whose prior job
// has not reached a terminal status.
type ErrJobAlreadyActive struct {
	CampaignID int
	JobID      string
}

func (e *ErrJobAlreadyActive) Error() string {
	return fmt.Sprintf("campaign %d already has active job %s", e.CampaignID, e.JobID)
}

func NewJobAlreadyActive(campaignID int, jobID string) error {
	return &ErrJobAlreadyActive{CampaignID: campaignID, JobID: jobID}
}

// ErrJobNotCancellable indicates a cancel was attempted against a job that is
// already terminal.
type ErrJobNotCancellable struct {
	JobID  string
	Status string
}

func (e *ErrJobNotCancellable) Error() string {
	return fmt.Sprintf("campaign job %s is %s and cannot be cancelled", e.JobID, e.Status)
}

func NewJobNotCancellable(id, status string) error {
	return &ErrJobNotCancellable{JobID: id, Status: status}
}

// ErrValidation carries a fail-fast validation failure. Never retried.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}
