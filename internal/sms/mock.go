// internal/sms/mock.go
package sms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// MockClient is an in-memory provider client for development and tests. It
// records every send and can be configured to fail specific recipients or to
// simulate a provider outage.
type MockClient struct {
	mu       sync.Mutex
	sent     []*model.SMSMessage
	statuses map[string]model.MessageStatus

	// FailNumbers maps a formatted recipient number to the rejection message
	// the mock should return for it.
	FailNumbers map[string]string
	// Unavailable makes every call fail with ErrProviderUnavailable.
	Unavailable bool
	// SendDelay is applied to each Send to simulate provider latency.
	SendDelay time.Duration

	inFlight    int
	maxInFlight int
}

func NewMockClient() *MockClient {
	return &MockClient{
		statuses:    make(map[string]model.MessageStatus),
		FailNumbers: make(map[string]string),
	}
}

func (c *MockClient) Send(ctx context.Context, to, from, body string) (*model.SMSMessage, error) {
	c.mu.Lock()
	if c.Unavailable {
		c.mu.Unlock()
		return nil, ErrProviderUnavailable
	}
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	delay := c.SendDelay
	reason, reject := c.FailNumbers[to]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.decInFlight()
			return nil, ctx.Err()
		}
	}

	c.decInFlight()

	if reject {
		return nil, fmt.Errorf("mock provider rejected %s: %s", to, reason)
	}

	now := time.Now()
	msg := &model.SMSMessage{
		ID:        uuid.NewString(),
		To:        to,
		From:      from,
		Body:      body,
		Status:    model.MessageStatusSent,
		Price:     "-0.0075",
		PriceUnit: "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.statuses[msg.ID] = model.MessageStatusDelivered
	c.mu.Unlock()
	return msg, nil
}

func (c *MockClient) Status(ctx context.Context, id string) (*model.SMSMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[id]
	if !ok {
		return nil, fmt.Errorf("mock provider: message %s not found", id)
	}
	return &model.SMSMessage{ID: id, Status: status, UpdatedAt: time.Now()}, nil
}

// SetStatus overrides the status the mock reports for a message.
func (c *MockClient) SetStatus(id string, status model.MessageStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[id] = status
}

// SentMessages returns a copy of everything sent through the mock.
func (c *MockClient) SentMessages() []*model.SMSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.SMSMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// MaxInFlight reports the peak number of concurrent sends observed.
func (c *MockClient) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

func (c *MockClient) decInFlight() {
	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
}

var _ Client = (*MockClient)(nil)
