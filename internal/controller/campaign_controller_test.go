// internal/controller/campaign_controller_test.go
package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/textpulse/textpulse-backend/internal/errors"
	"github.com/textpulse/textpulse-backend/internal/logger"
	"github.com/textpulse/textpulse-backend/internal/model"
	"github.com/textpulse/textpulse-backend/internal/queue"
	"github.com/textpulse/textpulse-backend/internal/repository"
	"github.com/textpulse/textpulse-backend/internal/scheduler"
	"github.com/textpulse/textpulse-backend/internal/service"
	"github.com/textpulse/textpulse-backend/internal/sms"
)

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	nextID    int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 1}
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit, userID int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.UserID == userID && (status == "" || string(c.Status) == status) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *memCampaignRepo) Update(c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (r *memCampaignRepo) UpdateScheduledAt(campaignID int, scheduledAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.ScheduledAt = scheduledAt
	}
	return nil
}

func (r *memCampaignRepo) UpdateDeliveryCounters(campaignID, sent, delivered, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.SentCount, c.DeliveredCount, c.FailedCount = sent, delivered, failed
	}
	return nil
}

func (r *memCampaignRepo) SetTotalRecipients(campaignID, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[campaignID]; ok {
		c.TotalRecipients = total
	}
	return nil
}

func (r *memCampaignRepo) Delete(campaignID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[campaignID]; !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	delete(r.campaigns, campaignID)
	return nil
}

var _ repository.CampaignRepositoryInterface = (*memCampaignRepo)(nil)

type memCustomerRepo struct {
	customers []*model.Customer
}

func (r *memCustomerRepo) GetByID(id int) (*model.Customer, error) {
	for _, c := range r.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCustomerRepo) ListByIDs(ids []int) ([]*model.Customer, error) {
	var out []*model.Customer
	for _, id := range ids {
		for _, c := range r.customers {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (r *memCustomerRepo) ListByUser(userID int) ([]*model.Customer, error) {
	var out []*model.Customer
	for _, c := range r.customers {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ repository.CustomerRepositoryInterface = (*memCustomerRepo)(nil)

type testEnv struct {
	server *httptest.Server
	repo   *memCampaignRepo
	client *sms.MockClient
	queue  *queue.CampaignQueue
}

// newTestEnv wires the full pipeline against in-memory stores and the mock
// SMS provider, served over httptest.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	campaignRepo := newMemCampaignRepo()
	customerRepo := &memCustomerRepo{customers: []*model.Customer{
		{ID: 1, UserID: 1, Phone: "2025550101", FirstName: "Alice"},
		{ID: 2, UserID: 1, Phone: "2025550102", FirstName: "Bob"},
	}}

	client := sms.NewMockClient()
	transport := sms.NewTransport(client, sms.TransportConfig{
		From:          "+12025550100",
		BatchSize:     10,
		BatchInterval: time.Millisecond,
	}, log)

	q := queue.NewCampaignQueue(
		queue.NewInMemoryJobStore(),
		transport,
		campaignRepo,
		queue.NopBroker{},
		queue.Config{BatchSize: 10, MaxRetries: 1, RetryBackoff: time.Millisecond},
		log,
	)
	t.Cleanup(q.Close)

	sched := scheduler.New(scheduler.NewInMemoryTaskStore(), q, nil, nil, time.Hour, log)

	svc := service.NewCampaignService(campaignRepo, customerRepo, sched, q, log)

	campaignController := &CampaignController{CampaignService: svc}
	taskController := &TaskController{Scheduler: sched, Queue: q}

	r := chi.NewRouter()
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Post("/campaigns/{id}/send", campaignController.SendCampaign)
	r.Post("/campaigns/{id}/reschedule", campaignController.RescheduleCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
	r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)
	r.Get("/tasks/stats", taskController.TaskStats)
	r.Get("/tasks/upcoming", taskController.UpcomingTasks)
	r.Get("/jobs", taskController.ListJobs)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, repo: campaignRepo, client: client, queue: q}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (e *testEnv) createCampaign(t *testing.T) int {
	t.Helper()
	resp := e.post(t, "/campaigns", map[string]interface{}{
		"user_id":      1,
		"name":         "welcome",
		"message_body": "Hi {{firstName}}",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Campaign
	decode(t, resp, &created)
	return created.ID
}

func TestCreateAndListCampaigns(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCampaign(t)
	assert.NotZero(t, id)

	resp := env.get(t, "/campaigns?user_id=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	decode(t, resp, &listing)
	require.Len(t, listing.Data, 1)
	assert.Equal(t, 1, listing.Pagination["total_count"])
}

func TestSendCampaignEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCampaign(t)

	resp := env.post(t, fmt.Sprintf("/campaigns/%d/send", id), map[string]interface{}{})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted struct {
		TaskID string `json:"task_id"`
	}
	decode(t, resp, &accepted)
	assert.NotEmpty(t, accepted.TaskID)

	require.Eventually(t, func() bool {
		c, err := env.repo.GetByID(id)
		return err == nil && c.Status == model.CampaignStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	c, err := env.repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalRecipients)
	assert.Equal(t, 2, c.SentCount)

	sent := env.client.SentMessages()
	require.Len(t, sent, 2)
	bodies := []string{sent[0].Body, sent[1].Body}
	assert.ElementsMatch(t, []string{"Hi Alice", "Hi Bob"}, bodies)

	detailsResp := env.get(t, fmt.Sprintf("/campaigns/%d", id))
	require.Equal(t, http.StatusOK, detailsResp.StatusCode)
	var details struct {
		Stats map[string]int `json:"stats"`
	}
	decode(t, detailsResp, &details)
	assert.Equal(t, 2, details.Stats["sent"])
}

func TestSendCampaignValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/campaigns", map[string]interface{}{
		"user_id":      1,
		"name":         "empty",
		"message_body": "",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Campaign
	decode(t, resp, &created)

	sendResp := env.post(t, fmt.Sprintf("/campaigns/%d/send", created.ID), map[string]interface{}{})
	defer sendResp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, sendResp.StatusCode)
}

func TestSendCampaignNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/campaigns/999/send", map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDuplicateSendConflicts(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCampaign(t)

	scheduledAt := time.Now().Add(time.Hour).Format(time.RFC3339)
	resp := env.post(t, fmt.Sprintf("/campaigns/%d/send", id), map[string]interface{}{"scheduled_at": scheduledAt})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	again := env.post(t, fmt.Sprintf("/campaigns/%d/send", id), map[string]interface{}{"scheduled_at": scheduledAt})
	defer again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestScheduleRescheduleCancelFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCampaign(t)

	scheduledAt := time.Now().Add(time.Hour).Format(time.RFC3339)
	resp := env.post(t, fmt.Sprintf("/campaigns/%d/send", id), map[string]interface{}{"scheduled_at": scheduledAt})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	upcoming := env.get(t, "/tasks/upcoming?user_id=1")
	var tasks struct {
		Data []model.ScheduledTask `json:"data"`
	}
	decode(t, upcoming, &tasks)
	require.Len(t, tasks.Data, 1)

	newTime := time.Now().Add(2 * time.Hour).Format(time.RFC3339)
	reResp := env.post(t, fmt.Sprintf("/campaigns/%d/reschedule", id), map[string]interface{}{"scheduled_at": newTime})
	require.Equal(t, http.StatusOK, reResp.StatusCode)
	reResp.Body.Close()

	upcoming = env.get(t, "/tasks/upcoming?user_id=1")
	decode(t, upcoming, &tasks)
	require.Len(t, tasks.Data, 1, "reschedule leaves exactly one pending task")

	cancelResp := env.post(t, fmt.Sprintf("/campaigns/%d/cancel?user_id=1", id), map[string]interface{}{})
	require.Equal(t, http.StatusOK, cancelResp.StatusCode)
	cancelResp.Body.Close()

	upcoming = env.get(t, "/tasks/upcoming?user_id=1")
	decode(t, upcoming, &tasks)
	assert.Empty(t, tasks.Data)

	// Cancelling again is a safe no-op.
	cancelResp = env.post(t, fmt.Sprintf("/campaigns/%d/cancel?user_id=1", id), map[string]interface{}{})
	assert.Equal(t, http.StatusOK, cancelResp.StatusCode)
	cancelResp.Body.Close()

	statsResp := env.get(t, "/tasks/stats?user_id=1")
	var stats scheduler.TaskStats
	decode(t, statsResp, &stats)
	assert.Equal(t, 2, stats.Cancelled)
}

func TestPersonalizedPreview(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCampaign(t)

	resp := env.post(t, fmt.Sprintf("/campaigns/%d/personalized-preview", id), map[string]interface{}{
		"customer_id": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		RenderedMessage string `json:"rendered_message"`
	}
	decode(t, resp, &preview)
	assert.Equal(t, "Hi Alice", preview.RenderedMessage)

	missing := env.post(t, fmt.Sprintf("/campaigns/%d/personalized-preview", id), map[string]interface{}{
		"customer_id": 404,
	})
	defer missing.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, missing.StatusCode)
}
