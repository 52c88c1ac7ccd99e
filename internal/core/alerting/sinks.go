package alerting

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSink writes deliveries to the log instead of an external transport.
// Useful for development and as the default when no transport is configured.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a new LogSink
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) DeliverInternal(ctx context.Context, recipient Recipient, msg *RenderedMessage) error {
	s.logger.WithFields(logrus.Fields{
		"recipient": recipient.ID,
		"subject":   msg.Subject,
		"severity":  msg.Severity,
	}).Info("Internal notification (log sink)")
	return nil
}

func (s *LogSink) DeliverEmail(ctx context.Context, address string, msg *RenderedMessage) error {
	s.logger.WithFields(logrus.Fields{
		"address":  address,
		"subject":  msg.Subject,
		"severity": msg.Severity,
	}).Info("Email notification (log sink)")
	return nil
}

// StaticResolver resolves every role to a fixed recipient set. It stands in
// for a real directory service behind the RecipientResolver boundary.
type StaticResolver struct {
	Recipients map[string][]Recipient
	Admins     []Recipient
}

func (r *StaticResolver) Resolve(ctx context.Context, scopeID string, roles []string, policy ResolvePolicy) ([]Recipient, error) {
	seen := make(map[string]bool)
	var out []Recipient
	for _, role := range roles {
		for _, recipient := range r.Recipients[role] {
			if !seen[recipient.ID] {
				seen[recipient.ID] = true
				out = append(out, recipient)
			}
		}
	}

	if len(out) == 0 && policy == ResolveFallbackAdmins {
		return r.Admins, nil
	}

	return out, nil
}
