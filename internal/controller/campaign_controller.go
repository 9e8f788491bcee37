// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.HasType(err, (*appErrors.ErrCampaignNotFound)(nil)),
		errors.HasType(err, (*appErrors.ErrTaskNotFound)(nil)),
		errors.HasType(err, (*appErrors.ErrJobNotFound)(nil)):
		status = http.StatusNotFound
	case errors.HasType(err, (*appErrors.ErrValidation)(nil)):
		status = http.StatusUnprocessableEntity
	case errors.HasType(err, (*appErrors.ErrJobAlreadyActive)(nil)),
		errors.HasType(err, (*appErrors.ErrTaskNotPending)(nil)),
		errors.HasType(err, (*appErrors.ErrJobNotCancellable)(nil)):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      int     `json:"user_id"`
		Name        string  `json:"name"`
		MessageBody string  `json:"message_body"`
		ScheduledAt *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.UserID, body.Name, body.MessageBody, body.ScheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(userID, page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, details)
}

// SendCampaign schedules the campaign for delivery. With no scheduled_at (or
// one in the past) sending starts immediately; otherwise it is deferred.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		CustomerIDs []int   `json:"customer_ids"`
		ScheduledAt *string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var scheduledAt *time.Time
	if body.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *body.ScheduledAt)
		if err != nil {
			http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
			return
		}
		scheduledAt = &t
	}

	task, err := c.CampaignService.SendCampaign(id, body.CustomerIDs, scheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"task_id":      task.ID,
		"campaign_id":  id,
		"scheduled_at": task.ScheduledAt,
		"status":       task.Status,
	})
}

func (c *CampaignController) RescheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		CustomerIDs []int  `json:"customer_ids"`
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	newTime, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
		return
	}

	task, err := c.CampaignService.RescheduleCampaignByID(id, body.CustomerIDs, newTime)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"task_id":      task.ID,
		"campaign_id":  id,
		"scheduled_at": task.ScheduledAt,
		"status":       task.Status,
	})
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))

	if err := c.CampaignService.CancelScheduledCampaign(id, userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"campaign_id": id,
		"cancelled":   true,
	})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		CustomerID       int     `json:"customer_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(campaignID, body.CustomerID, body.OverrideTemplate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"customer_id":      body.CustomerID,
	})
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.CampaignRepo.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
