// internal/sms/transport.go
package sms

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/textpulse/textpulse-backend/internal/metrics"
	"github.com/textpulse/textpulse-backend/internal/model"
)

// Error codes recorded on messages whose send failed.
const (
	ErrorCodeInvalidNumber       = "invalid_number"
	ErrorCodeRejected            = "rejected"
	ErrorCodeProviderUnavailable = "provider_unavailable"
	ErrorCodeCancelled           = "cancelled"
)

// ErrProviderUnavailable marks systemic provider failures (network errors,
// 5xx responses). Per-recipient rejections are ordinary provider errors.
var ErrProviderUnavailable = errors.New("sms provider unavailable")

// Client is the wire-level provider API: send one message, fetch the current
// status of one message. Implementations: HTTPClient (production), MockClient.
type Client interface {
	Send(ctx context.Context, to, from, body string) (*model.SMSMessage, error)
	Status(ctx context.Context, id string) (*model.SMSMessage, error)
}

// Sender is the transport contract consumed by the campaign queue.
type Sender interface {
	SendMessage(ctx context.Context, msg *model.SMSMessage) *model.SMSMessage
	SendBatch(ctx context.Context, msgs []*model.SMSMessage) ([]*model.SMSMessage, error)
	GetMessageStatus(ctx context.Context, id string) (*model.SMSMessage, error)
}

// Transport implements batching and rate limiting over a provider client.
// Batches of BatchSize are sent concurrently; batches are paced at one per
// BatchInterval to respect provider rate limits.
type Transport struct {
	client    Client
	from      string
	batchSize int
	limiter   *rate.Limiter
	logger    *zap.SugaredLogger
}

type TransportConfig struct {
	From          string
	BatchSize     int
	BatchInterval time.Duration
}

func NewTransport(client Client, cfg TransportConfig, log *zap.SugaredLogger) *Transport {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = time.Second
	}
	return &Transport{
		client:    client,
		from:      cfg.From,
		batchSize: cfg.BatchSize,
		limiter:   rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		logger:    log,
	}
}

// SendMessage submits one message to the provider. Failures are data, not
// errors: a failed send comes back with status failed and the error code and
// message populated, so batch callers can continue with siblings.
func (t *Transport) SendMessage(ctx context.Context, msg *model.SMSMessage) *model.SMSMessage {
	if msg.From == "" {
		msg.From = t.from
	}
	if !ValidatePhoneNumber(msg.To) {
		return failedCopy(msg, ErrorCodeInvalidNumber, "invalid recipient phone number")
	}

	to := FormatPhoneNumber(msg.To)
	sent, err := t.client.Send(ctx, to, msg.From, msg.Body)
	if err != nil {
		code := ErrorCodeRejected
		if errors.Is(err, ErrProviderUnavailable) {
			code = ErrorCodeProviderUnavailable
		}
		t.logger.Warnw("sms send failed", "to", to, "code", code, "error", err)
		return failedCopy(msg, code, err.Error())
	}

	sent.To = to
	if sent.Status == "" {
		sent.Status = model.MessageStatusSent
	}
	metrics.MessagesSent.Inc()
	return sent
}

// SendBatch partitions msgs into fixed-size batches and sends each batch
// concurrently. One recipient's failure never aborts its siblings; results
// match the order of the input. The returned error is non-nil only when the
// context is cancelled mid-run; messages not attempted by then are marked
// failed with the cancelled code.
func (t *Transport) SendBatch(ctx context.Context, msgs []*model.SMSMessage) ([]*model.SMSMessage, error) {
	results := make([]*model.SMSMessage, len(msgs))

	for start := 0; start < len(msgs); start += t.batchSize {
		if err := t.limiter.Wait(ctx); err != nil {
			for i := start; i < len(msgs); i++ {
				results[i] = failedCopy(msgs[i], ErrorCodeCancelled, "send cancelled before attempt")
			}
			return results, errors.Wrap(err, "batch send interrupted")
		}

		end := start + t.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = t.SendMessage(ctx, msgs[i])
			}(i)
		}
		wg.Wait()
		metrics.BatchesSent.Inc()
	}

	return results, nil
}

// GetMessageStatus polls the provider for the current delivery status.
func (t *Transport) GetMessageStatus(ctx context.Context, id string) (*model.SMSMessage, error) {
	msg, err := t.client.Status(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch status for message %s", id)
	}
	return msg, nil
}

func failedCopy(msg *model.SMSMessage, code, detail string) *model.SMSMessage {
	out := *msg
	out.Status = model.MessageStatusFailed
	out.ErrorCode = code
	out.ErrorMessage = detail
	out.UpdatedAt = time.Now()
	return &out
}

var _ Sender = (*Transport)(nil)
