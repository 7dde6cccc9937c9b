package notify

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet routes bounce and complaint events for lead mail.
	ConfigurationSet string
}

// SESSender mails leads through SES v2. Message tags become SES email tags,
// so bounce events can be joined back to the lead that caused them.
type SESSender struct {
	client           sesAPI
	from             string
	configurationSet string
	logger           *logging.Logger
}

// NewSESSender returns nil without a client.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{
		client:           client,
		from:             fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		configurationSet: strings.TrimSpace(cfg.ConfigurationSet),
		logger:           logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: sesText(msg.Subject),
				Body:    &types.Body{},
			},
		},
		EmailTags: sesTags(msg.Tags),
	}
	if msg.Body != "" {
		input.Content.Simple.Body.Text = sesText(msg.Body)
	}
	if msg.HTML != "" {
		input.Content.Simple.Body.Html = sesText(msg.HTML)
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	leadID := msg.Tags[TagLeadID]
	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("lead email rejected by SES", "lead_id", leadID, "to", msg.To, "error", err)
		return fmt.Errorf("notify: SES send for lead %q failed: %w", leadID, err)
	}

	s.logger.Info("lead email queued by SES", "lead_id", leadID, "to", msg.To, "message_id", aws.ToString(output.MessageId))
	return nil
}

func sesText(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

// sesTags converts message tags in key order. SES only accepts ASCII letters,
// digits, '_', '-', '.' and '@' in tag names and values.
func sesTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]types.MessageTag, 0, len(tags))
	for _, key := range slices.Sorted(maps.Keys(tags)) {
		value := sesTagValue(tags[key])
		if value == "" {
			continue
		}
		out = append(out, types.MessageTag{Name: aws.String(sesTagValue(key)), Value: aws.String(value)})
	}
	return out
}

func sesTagValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.', r == '@':
			return r
		}
		return '_'
	}, s)
}

var _ EmailSender = (*SESSender)(nil)
