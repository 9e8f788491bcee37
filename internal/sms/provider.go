// internal/sms/provider.go
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/textpulse/textpulse-backend/internal/config"
	"github.com/textpulse/textpulse-backend/internal/model"
)

// providerMessage is the provider's wire representation of a message.
type providerMessage struct {
	SID          string  `json:"sid"`
	To           string  `json:"to"`
	From         string  `json:"from"`
	Body         string  `json:"body"`
	Status       string  `json:"status"`
	ErrorCode    *string `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	Price        *string `json:"price"`
	PriceUnit    *string `json:"price_unit"`
	DateCreated  string  `json:"date_created"`
	DateUpdated  string  `json:"date_updated"`
}

// NormalizeProviderStatus remaps the provider's status vocabulary onto the
// normalized enum.
func NormalizeProviderStatus(s string) model.MessageStatus {
	switch strings.ToLower(s) {
	case "queued", "accepted", "scheduled", "sending":
		return model.MessageStatusPending
	case "sent":
		return model.MessageStatusSent
	case "delivered", "read":
		return model.MessageStatusDelivered
	case "undelivered":
		return model.MessageStatusUndelivered
	case "failed", "canceled", "cancelled":
		return model.MessageStatusFailed
	default:
		return model.MessageStatusPending
	}
}

// HTTPClient talks to the SMS provider's REST API, authenticated with the
// account credentials.
type HTTPClient struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewHTTPClient(cfg config.SMSConfig) *HTTPClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Send submits one message. Network failures and 5xx responses come back
// wrapped in ErrProviderUnavailable; per-recipient rejections (4xx) are
// ordinary errors.
func (c *HTTPClient) Send(ctx context.Context, to, from, body string) (*model.SMSMessage, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.AccountID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "send request failed"), ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, errors.Mark(errors.Newf("provider send http status: %d", resp.StatusCode), ErrProviderUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		return nil, errors.Newf("provider rejected message (http %d, code %d): %s", resp.StatusCode, pe.Code, pe.Message)
	}

	var out providerMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode send response")
	}
	return fromProviderMessage(&out), nil
}

// Status fetches the current delivery status of a previously sent message.
func (c *HTTPClient) Status(ctx context.Context, id string) (*model.SMSMessage, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages/%s.json", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.AccountID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "status request failed"), ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf("provider status http status: %d", resp.StatusCode)
	}

	var out providerMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode status response")
	}
	return fromProviderMessage(&out), nil
}

func fromProviderMessage(pm *providerMessage) *model.SMSMessage {
	msg := &model.SMSMessage{
		ID:     pm.SID,
		To:     pm.To,
		From:   pm.From,
		Body:   pm.Body,
		Status: NormalizeProviderStatus(pm.Status),
	}
	if pm.ErrorCode != nil {
		msg.ErrorCode = *pm.ErrorCode
	}
	if pm.ErrorMessage != nil {
		msg.ErrorMessage = *pm.ErrorMessage
	}
	if pm.Price != nil {
		msg.Price = *pm.Price
	}
	if pm.PriceUnit != nil {
		msg.PriceUnit = *pm.PriceUnit
	}
	if t, err := time.Parse(time.RFC1123Z, pm.DateCreated); err == nil {
		msg.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC1123Z, pm.DateUpdated); err == nil {
		msg.UpdatedAt = t
	}
	return msg
}

var _ Client = (*HTTPClient)(nil)
