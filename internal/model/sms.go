// internal/model/sms.go
package model

import "time"

// MessageStatus is the normalized delivery status vocabulary. Provider
// specific statuses are remapped onto this set by the transport.
type MessageStatus string

const (
	MessageStatusPending     MessageStatus = "pending"
	MessageStatusSent        MessageStatus = "sent"
	MessageStatusDelivered   MessageStatus = "delivered"
	MessageStatusFailed      MessageStatus = "failed"
	MessageStatusUndelivered MessageStatus = "undelivered"
)

func (s MessageStatus) String() string { return string(s) }

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusDelivered,
		MessageStatusFailed, MessageStatusUndelivered:
		return true
	}
	return false
}

// SMSMessage is a single send attempt as seen by the transport. One campaign
// message may map to several SMSMessage attempts across retries.
type SMSMessage struct {
	ID           string        `json:"id"`
	To           string        `json:"to"`
	From         string        `json:"from"`
	Body         string        `json:"body"`
	Status       MessageStatus `json:"status"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Price        string        `json:"price,omitempty"`
	PriceUnit    string        `json:"price_unit,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
