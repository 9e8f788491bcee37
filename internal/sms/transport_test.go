// internal/sms/transport_test.go
package sms

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textpulse/textpulse-backend/internal/logger"
	"github.com/textpulse/textpulse-backend/internal/model"
)

func newTestTransport(client Client, batchSize int, interval time.Duration) *Transport {
	return NewTransport(client, TransportConfig{
		From:          "+12025550100",
		BatchSize:     batchSize,
		BatchInterval: interval,
	}, logger.NewNop())
}

func batchOf(n int) []*model.SMSMessage {
	msgs := make([]*model.SMSMessage, n)
	for i := range msgs {
		msgs[i] = &model.SMSMessage{
			To:   fmt.Sprintf("20255502%02d", i),
			Body: "hello",
		}
	}
	return msgs
}

func TestSendMessageInvalidNumberIsDataNotError(t *testing.T) {
	client := NewMockClient()
	tr := newTestTransport(client, 10, time.Millisecond)

	result := tr.SendMessage(context.Background(), &model.SMSMessage{To: "555-0101", Body: "hi"})

	assert.Equal(t, model.MessageStatusFailed, result.Status)
	assert.Equal(t, ErrorCodeInvalidNumber, result.ErrorCode)
	assert.Empty(t, client.SentMessages())
}

func TestSendMessageRejectionRecordsCode(t *testing.T) {
	client := NewMockClient()
	client.FailNumbers["+12025550101"] = "blocked recipient"
	tr := newTestTransport(client, 10, time.Millisecond)

	result := tr.SendMessage(context.Background(), &model.SMSMessage{To: "2025550101", Body: "hi"})

	assert.Equal(t, model.MessageStatusFailed, result.Status)
	assert.Equal(t, ErrorCodeRejected, result.ErrorCode)
	assert.Contains(t, result.ErrorMessage, "blocked recipient")
}

func TestSendMessageProviderUnavailable(t *testing.T) {
	client := NewMockClient()
	client.Unavailable = true
	tr := newTestTransport(client, 10, time.Millisecond)

	result := tr.SendMessage(context.Background(), &model.SMSMessage{To: "2025550101", Body: "hi"})

	assert.Equal(t, model.MessageStatusFailed, result.Status)
	assert.Equal(t, ErrorCodeProviderUnavailable, result.ErrorCode)
}

func TestSendBatchPreservesOrderAndIsolatesFailures(t *testing.T) {
	client := NewMockClient()
	client.FailNumbers["+12025550205"] = "opted out"
	tr := newTestTransport(client, 4, time.Millisecond)

	msgs := batchOf(12)
	results, err := tr.SendBatch(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, results, len(msgs))

	for i, res := range results {
		require.NotNil(t, res, "result %d", i)
		assert.Equal(t, FormatPhoneNumber(msgs[i].To), res.To, "result %d out of order", i)
		if i == 5 {
			assert.Equal(t, model.MessageStatusFailed, res.Status)
			assert.Equal(t, ErrorCodeRejected, res.ErrorCode)
		} else {
			assert.Equal(t, model.MessageStatusSent, res.Status)
		}
	}
	assert.Len(t, client.SentMessages(), 11)
}

func TestSendBatchPacesBatches(t *testing.T) {
	client := NewMockClient()
	interval := 50 * time.Millisecond
	tr := newTestTransport(client, 10, interval)

	// 25 messages in batches of 10 is 3 batches: the first goes immediately,
	// the remaining two each wait out the interval.
	start := time.Now()
	results, err := tr.SendBatch(context.Background(), batchOf(25))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, results, 25)
	assert.GreaterOrEqual(t, elapsed, 2*interval-10*time.Millisecond)
}

func TestSendBatchConcurrencyBoundedByBatchSize(t *testing.T) {
	client := NewMockClient()
	client.SendDelay = 20 * time.Millisecond
	tr := newTestTransport(client, 10, time.Millisecond)

	_, err := tr.SendBatch(context.Background(), batchOf(20))
	require.NoError(t, err)

	peak := client.MaxInFlight()
	assert.LessOrEqual(t, peak, 10)
	assert.Greater(t, peak, 1, "batch members should send concurrently")
}

func TestSendBatchCancelledContext(t *testing.T) {
	client := NewMockClient()
	tr := newTestTransport(client, 5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := tr.SendBatch(ctx, batchOf(10))
	require.Error(t, err)
	require.Len(t, results, 10)
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, ErrorCodeCancelled, res.ErrorCode)
	}
}

func TestGetMessageStatus(t *testing.T) {
	client := NewMockClient()
	tr := newTestTransport(client, 10, time.Millisecond)

	sent := tr.SendMessage(context.Background(), &model.SMSMessage{To: "2025550101", Body: "hi"})
	require.Equal(t, model.MessageStatusSent, sent.Status)

	client.SetStatus(sent.ID, model.MessageStatusUndelivered)
	status, err := tr.GetMessageStatus(context.Background(), sent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusUndelivered, status.Status)

	_, err = tr.GetMessageStatus(context.Background(), "missing")
	assert.Error(t, err)
}
