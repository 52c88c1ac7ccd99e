package websocket

import (
	"context"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/alerting"
	"github.com/sirupsen/logrus"
)

// NotificationSink delivers internal notifications as targeted WebSocket
// pushes. Email delivery stays behind an injected sink so the mail transport
// remains an external collaborator; when none is configured the email branch
// only logs.
type NotificationSink struct {
	hub    *Hub
	email  alerting.MessageSink
	logger *logrus.Logger
}

// NewNotificationSink creates a new NotificationSink. email may be nil.
func NewNotificationSink(hub *Hub, email alerting.MessageSink, logger *logrus.Logger) *NotificationSink {
	return &NotificationSink{hub: hub, email: email, logger: logger}
}

// DeliverInternal pushes the rendered message to the recipient's connections.
func (s *NotificationSink) DeliverInternal(ctx context.Context, recipient alerting.Recipient, msg *alerting.RenderedMessage) error {
	return s.hub.SendToUser(recipient.DeliveryTarget, Message{
		Type: "alert_notification",
		Data: msg,
	})
}

// DeliverEmail hands the message to the configured email transport.
func (s *NotificationSink) DeliverEmail(ctx context.Context, address string, msg *alerting.RenderedMessage) error {
	if s.email != nil {
		return s.email.DeliverEmail(ctx, address, msg)
	}

	s.logger.WithFields(logrus.Fields{
		"address": address,
		"subject": msg.Subject,
	}).Info("No email transport configured, logging delivery")
	return nil
}
