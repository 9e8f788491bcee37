// internal/controller/task_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/textpulse/textpulse-backend/internal/scheduler"
	"github.com/textpulse/textpulse-backend/internal/service"
)

// TaskController exposes scheduled-task and job inspection endpoints.
type TaskController struct {
	Scheduler *scheduler.Scheduler
	Queue     service.JobInspector
}

func (c *TaskController) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := c.Scheduler.GetTask(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, task)
}

func (c *TaskController) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	writeJSON(w, map[string]interface{}{
		"data": c.Scheduler.GetTasksForUser(userID),
	})
}

func (c *TaskController) UpcomingTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	writeJSON(w, map[string]interface{}{
		"data": c.Scheduler.GetUpcomingTasks(userID, limit),
	})
}

func (c *TaskController) TaskStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	writeJSON(w, c.Scheduler.GetTaskStats(userID))
}

func (c *TaskController) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if err := c.Scheduler.CancelTask(taskID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"task_id":   taskID,
		"cancelled": true,
	})
}

func (c *TaskController) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	writeJSON(w, map[string]interface{}{
		"data": c.Queue.GetJobs(userID),
	})
}

func (c *TaskController) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := c.Queue.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"job":    job,
		"counts": job.Counts(),
	})
}
