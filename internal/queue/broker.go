// internal/queue/broker.go
package queue

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/streadway/amqp"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// DeliveryReport is the per-message event published after each send attempt.
// The standalone worker consumes these to persist delivery outcomes.
type DeliveryReport struct {
	JobID      string              `json:"job_id"`
	CampaignID int                 `json:"campaign_id"`
	MessageID  string              `json:"message_id"`
	CustomerID int                 `json:"customer_id"`
	Phone      string              `json:"phone"`
	Status     model.MessageStatus `json:"status"`
	ErrorCode  string              `json:"error_code,omitempty"`
	ReportedAt time.Time           `json:"reported_at"`
}

// ReportBroker publishes delivery reports for out-of-process consumers.
type ReportBroker interface {
	Publish(report DeliveryReport) error
	Close() error
}

// AMQPBroker publishes delivery reports to a durable RabbitMQ queue.
type AMQPBroker struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

func NewAMQPBroker(url, queueName string) (*AMQPBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "failed to declare queue %s", queueName)
	}

	return &AMQPBroker{conn: conn, channel: ch, queueName: queueName}, nil
}

func (b *AMQPBroker) Publish(report DeliveryReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal delivery report")
	}
	return b.channel.Publish(
		"",
		b.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (b *AMQPBroker) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// NopBroker discards reports. Used when no broker is configured and in tests.
type NopBroker struct{}

func (NopBroker) Publish(DeliveryReport) error { return nil }
func (NopBroker) Close() error                 { return nil }

var (
	_ ReportBroker = (*AMQPBroker)(nil)
	_ ReportBroker = NopBroker{}
)
