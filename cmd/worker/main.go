// cmd/worker/main.go
package main

import (
	"encoding/json"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/streadway/amqp"

	"github.com/textpulse/textpulse-backend/internal/config"
	"github.com/textpulse/textpulse-backend/internal/db"
	"github.com/textpulse/textpulse-backend/internal/logger"
	"github.com/textpulse/textpulse-backend/internal/queue"
	"github.com/textpulse/textpulse-backend/internal/repository"
)

// The worker drains the delivery-report queue and persists each report, then
// recomputes the campaign's counters from the stored reports. Both writes are
// idempotent so redelivered messages are harmless.
func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer zlog.Sync()

	database, err := db.Open(cfg.DB)
	if err != nil {
		zlog.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	reportRepo := &repository.DeliveryReportRepository{DB: database}

	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		zlog.Fatalw("failed to connect to RabbitMQ", "error", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		zlog.Fatalw("failed to open channel", "error", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		cfg.AMQP.ReportQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		zlog.Fatalw("failed to declare queue", "queue", cfg.AMQP.ReportQueue, "error", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		zlog.Fatalw("failed to register consumer", "error", err)
	}

	zlog.Infow("worker running, waiting for delivery reports", "queue", q.Name)

	for d := range msgs {
		var report queue.DeliveryReport
		if err := json.Unmarshal(d.Body, &report); err != nil {
			zlog.Warnw("invalid delivery report, dropping", "error", err)
			d.Ack(false)
			continue
		}

		err := persistReport(reportRepo, report)
		if err == nil {
			if stats, statsErr := reportRepo.CountByStatus(report.CampaignID); statsErr == nil {
				zlog.Debugw("campaign delivery state", "campaign_id", report.CampaignID, "counts", stats)
			}
			d.Ack(false)
			continue
		}

		attempts := retryAttempts(d.Headers)
		zlog.Errorw("failed to persist delivery report",
			"message_id", report.MessageID,
			"campaign_id", report.CampaignID,
			"attempts", attempts,
			"error", err)

		if attempts >= maxPersistRetries {
			zlog.Errorw("dropping delivery report after retries",
				"message_id", report.MessageID,
				"campaign_id", report.CampaignID)
			d.Ack(false)
			continue
		}

		// A plain Nack requeues the original delivery with its headers
		// untouched, so the attempt count would never advance. Republish
		// with the count bumped and ack the original instead.
		if pubErr := ch.Publish("", q.Name, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        d.Body,
			Headers:     amqp.Table{"x-retry-count": attempts + 1},
		}); pubErr != nil {
			zlog.Errorw("failed to requeue delivery report", "message_id", report.MessageID, "error", pubErr)
			d.Nack(false, true)
			continue
		}
		d.Ack(false)
	}
}

// maxPersistRetries bounds redeliveries of a report the database keeps
// rejecting before it is dropped.
const maxPersistRetries = 3

// retryAttempts reads the redelivery count carried on the message. AMQP
// table integers come back as int32 or int64 depending on the encoder.
func retryAttempts(headers amqp.Table) int32 {
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	}
	return 0
}

func persistReport(repo repository.DeliveryReportRepositoryInterface, report queue.DeliveryReport) error {
	reportedAt := report.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now()
	}

	if err := repo.Insert(&repository.DeliveryReportRow{
		JobID:      report.JobID,
		CampaignID: report.CampaignID,
		MessageID:  report.MessageID,
		CustomerID: report.CustomerID,
		Phone:      report.Phone,
		Status:     string(report.Status),
		ErrorCode:  report.ErrorCode,
		ReportedAt: reportedAt,
	}); err != nil {
		return err
	}

	return repo.RollupCampaignCounters(report.CampaignID)
}
