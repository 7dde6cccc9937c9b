package notify

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

const defaultFromName = "Support Agent"

// EmailSender defines the interface for sending emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	ReplyTo string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
	// Tags travel with the message to the provider's event stream.
	Tags map[string]string
}

// Tag keys set on lead emails.
const (
	TagLeadID     = "lead_id"
	TagLeadSource = "lead_source"
)

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a new SendGrid email sender. It returns nil when no API key is set.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send sends an email via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	for key, value := range msg.Tags {
		message.Personalizations[0].SetCustomArg(key, value)
	}

	leadID := msg.Tags[TagLeadID]
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To, "lead_id", leadID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "to", msg.To, "lead_id", leadID)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "lead_id", leadID, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending. Used in development when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub email sender that logs but doesn't send.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

// Send logs the email but doesn't actually send it.
func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject, "lead_id", msg.Tags[TagLeadID])
	return nil
}

// EmailSink emails each captured lead to a fixed team inbox.
type EmailSink struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

// NewEmailSink creates a sink that mails leads to the given address.
func NewEmailSink(sender EmailSender, to string, logger *logging.Logger) *EmailSink {
	if sender == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailSink{sender: sender, to: strings.TrimSpace(to), logger: logger}
}

// LeadEmail builds the message sent for a record.
func LeadEmail(to string, record leads.Record) EmailMessage {
	who := record.Name
	if who == "" {
		who = record.Email
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A new lead came in through the %s.\n\n", sourceLabel(record.Source))
	fmt.Fprintf(&b, "Name: %s\n", record.Name)
	fmt.Fprintf(&b, "Email: %s\n", record.Email)
	fmt.Fprintf(&b, "Phone: %s\n", record.Phone)
	fmt.Fprintf(&b, "Company: %s\n", record.Company)
	fmt.Fprintf(&b, "Message: %s\n", record.Message)
	fmt.Fprintf(&b, "Created at: %s\n", record.CreatedAtISO())
	fmt.Fprintf(&b, "Lead ID: %s\n", record.ID)
	msg := EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("New lead: %s", who),
		Body:    b.String(),
		Tags: map[string]string{
			TagLeadID:     record.ID,
			TagLeadSource: sourceTag(record.Source),
		},
	}
	// Replies from the team go straight to the visitor.
	if _, err := netmail.ParseAddress(record.Email); err == nil {
		msg.ReplyTo = record.Email
	}
	return msg
}

func sourceTag(source string) string {
	if source == "" {
		return leads.SourceWebchat
	}
	return source
}

func sourceLabel(source string) string {
	if source == "" || source == leads.SourceWebchat {
		return "website chat"
	}
	return source
}

// Notify sends the lead email. A missing recipient counts as failure.
func (s *EmailSink) Notify(ctx context.Context, record leads.Record) bool {
	if s.to == "" {
		s.logger.Warn("lead email recipient not configured")
		return false
	}
	if err := s.sender.Send(ctx, LeadEmail(s.to, record)); err != nil {
		s.logger.Error("lead email failed", "error", err, "lead_id", record.ID)
		return false
	}
	return true
}
