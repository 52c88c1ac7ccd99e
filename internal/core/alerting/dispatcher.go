package alerting

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
)

// Recipient is a resolved internal-messaging target.
type Recipient struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	DeliveryTarget string `json:"delivery_target"`
}

// ResolvePolicy selects the fallback behavior when a rule has no recipient
// roles configured.
type ResolvePolicy string

const (
	// ResolveConfiguredOnly returns only recipients matching the configured
	// roles; an empty role set resolves to nobody.
	ResolveConfiguredOnly ResolvePolicy = "configured_only"
	// ResolveFallbackAdmins resolves an empty role set to the scope's admin
	// group instead.
	ResolveFallbackAdmins ResolvePolicy = "fallback_admins"
)

// RecipientResolver resolves recipient roles to deliverable recipients.
// Role and permission handling live entirely behind this interface.
type RecipientResolver interface {
	Resolve(ctx context.Context, scopeID string, roles []string, policy ResolvePolicy) ([]Recipient, error)
}

// MessageSink delivers rendered messages. Implementations own their transport
// and any retry policy; the dispatcher only aggregates outcomes.
type MessageSink interface {
	DeliverInternal(ctx context.Context, recipient Recipient, msg *RenderedMessage) error
	DeliverEmail(ctx context.Context, address string, msg *RenderedMessage) error
}

// RenderedMessage is the channel-independent rendering of one notification.
type RenderedMessage struct {
	Subject   string             `json:"subject"`
	Body      string             `json:"body"`
	RichBody  string             `json:"rich_body"`
	Severity  models.Severity    `json:"severity"`
	RuleID    string             `json:"rule_id"`
	ScopeID   string             `json:"scope_id"`
	MetricKey string             `json:"metric_key"`
	Status    models.AlertStatus `json:"status"`
}

// DispatchResult aggregates a fan-out. Partial failure is success overall:
// Succeeded >= 1 is the caller's signal to mark the notification sent.
type DispatchResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

// Sent reports whether at least one delivery succeeded.
func (r *DispatchResult) Sent() bool {
	return r.Succeeded > 0
}

// Dispatcher fans a notification out to the internal-messaging and
// direct-email channels.
type Dispatcher struct {
	resolver RecipientResolver
	sink     MessageSink
	policy   ResolvePolicy
	timeout  time.Duration
	logger   *logrus.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(resolver RecipientResolver, sink MessageSink, policy ResolvePolicy, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		resolver: resolver,
		sink:     sink,
		policy:   policy,
		timeout:  timeout,
		logger:   logger,
	}
}

// Send renders the message once and attempts every configured channel.
// Per-recipient failures are collected, never fatal.
func (d *Dispatcher) Send(ctx context.Context, rule *models.AlertRule, severity models.Severity, eval Evaluation) (*DispatchResult, error) {
	msg := RenderMessage(rule, severity, eval)
	result := &DispatchResult{}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if rule.InternalEnabled {
		d.sendInternal(ctx, rule, msg, result)
	}
	if rule.EmailEnabled {
		d.sendEmail(ctx, rule, msg, result)
	}

	d.logger.WithFields(logrus.Fields{
		"rule_id":   rule.ID,
		"severity":  severity,
		"attempted": result.Attempted,
		"succeeded": result.Succeeded,
		"failed":    len(result.Errors),
	}).Info("Notification dispatch finished")

	return result, nil
}

func (d *Dispatcher) sendInternal(ctx context.Context, rule *models.AlertRule, msg *RenderedMessage, result *DispatchResult) {
	recipients, err := d.resolver.Resolve(ctx, rule.ScopeID, splitList(rule.RecipientRoles), d.policy)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("recipient resolution failed: %v", err))
		return
	}

	for _, recipient := range recipients {
		result.Attempted++
		if err := d.sink.DeliverInternal(ctx, recipient, msg); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("internal delivery to %s failed: %v", recipient.ID, err))
			continue
		}
		result.Succeeded++
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, rule *models.AlertRule, msg *RenderedMessage, result *DispatchResult) {
	for _, address := range ParseEmailList(rule.EmailList) {
		result.Attempted++
		if err := d.sink.DeliverEmail(ctx, address, msg); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("email delivery to %s failed: %v", address, err))
			continue
		}
		result.Succeeded++
	}
}

// ParseEmailList splits a free-text address list on newlines, commas and
// semicolons, keeps only syntactically valid addresses and deduplicates.
func ParseEmailList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})

	seen := make(map[string]bool)
	var addresses []string
	for _, field := range fields {
		candidate := strings.TrimSpace(field)
		if candidate == "" {
			continue
		}
		parsed, err := mail.ParseAddress(candidate)
		if err != nil {
			continue
		}
		address := strings.ToLower(parsed.Address)
		if seen[address] {
			continue
		}
		seen[address] = true
		addresses = append(addresses, address)
	}

	return addresses
}

// splitList splits a comma-separated role list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RenderMessage builds the shared subject and bodies for one notification.
func RenderMessage(rule *models.AlertRule, severity models.Severity, eval Evaluation) *RenderedMessage {
	var subject string
	switch severity {
	case models.SeverityCritical:
		subject = fmt.Sprintf("[CRITICAL] %s", rule.Name)
	case models.SeverityWarning:
		subject = fmt.Sprintf("[WARNING] %s", rule.Name)
	case models.SeverityRecovery:
		subject = fmt.Sprintf("[RECOVERED] %s", rule.Name)
	default:
		subject = rule.Name
	}

	body := fmt.Sprintf("Alert %q on metric %s: %s", rule.Name, rule.MetricKey, eval.Details)

	var rich strings.Builder
	fmt.Fprintf(&rich, "<h3>%s</h3>", subject)
	fmt.Fprintf(&rich, "<p>Metric: <b>%s</b></p>", rule.MetricKey)
	fmt.Fprintf(&rich, "<p>%s</p>", eval.Details)
	if eval.PercentChange != nil {
		fmt.Fprintf(&rich, "<p>Change: %.2f%%</p>", *eval.PercentChange)
	}

	return &RenderedMessage{
		Subject:   subject,
		Body:      body,
		RichBody:  rich.String(),
		Severity:  severity,
		RuleID:    rule.ID,
		ScopeID:   rule.ScopeID,
		MetricKey: rule.MetricKey,
		Status:    eval.Status,
	}
}
