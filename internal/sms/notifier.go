// internal/sms/notifier.go
package sms

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/textpulse/textpulse-backend/internal/model"
)

// ReminderNotifier delivers reminder texts through the SMS transport.
type ReminderNotifier struct {
	sender Sender
	logger *zap.SugaredLogger
}

func NewReminderNotifier(sender Sender, log *zap.SugaredLogger) *ReminderNotifier {
	return &ReminderNotifier{sender: sender, logger: log}
}

func (n *ReminderNotifier) SendReminder(ctx context.Context, userID int, phone, message string) error {
	result := n.sender.SendMessage(ctx, &model.SMSMessage{To: phone, Body: message})
	if result.Status == model.MessageStatusFailed {
		return errors.Newf("reminder send failed: %s (%s)", result.ErrorMessage, result.ErrorCode)
	}
	n.logger.Infow("reminder sent", "user_id", userID, "to", result.To, "status", result.Status)
	return nil
}
