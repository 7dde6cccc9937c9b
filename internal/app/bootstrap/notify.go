package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	amqp "github.com/rabbitmq/amqp091-go"

	appconfig "github.com/wolfman30/webchat-support-agent/internal/config"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/internal/notify"
	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

const (
	producerName = "webchat-support-agent"
	notifyGrace  = time.Second
)

// BuildSink assembles every configured lead sink behind a bounded fan-out.
// When repo is non-nil every lead is also persisted. The cleanup closes
// broker connections.
func BuildSink(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, repo leads.Repository, m *metrics.ConversationMetrics, logger *logging.Logger) (notify.Sink, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cleanup := func() {}
	var sinks []notify.Named
	add := func(name string, sink notify.Sink) {
		sinks = append(sinks, notify.Named{Name: name, Sink: notify.Bounded(sink, cfg.NotifyTimeout, logger)})
	}

	if strings.TrimSpace(cfg.DiscordWebhook) != "" {
		add("discord", notify.NewWebhookSink(cfg.DiscordWebhook, nil, logger))
	}

	if sender := buildEmailSender(cfg, awsCfg, logger); sender != nil {
		if strings.TrimSpace(cfg.NotifyEmailTo) == "" {
			logger.Warn("email provider configured without LEAD_NOTIFY_EMAIL; email sink disabled")
		} else {
			add("email", notify.NewEmailSink(sender, cfg.NotifyEmailTo, logger))
		}
	}

	if strings.TrimSpace(cfg.LeadQueueURL) != "" {
		add("sqs", notify.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.LeadQueueURL, producerName, logger))
	}

	if strings.TrimSpace(cfg.AMQPURL) != "" {
		ch, closeAMQP, err := dialAMQP(cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = closeAMQP
		add("amqp", notify.NewAMQPSink(ch, cfg.AMQPExchange, cfg.AMQPRoutingKey, producerName, logger))
	}

	if len(sinks) == 0 {
		logger.Warn("no lead sinks configured; captured leads will be reported as not shared")
	}

	var sink notify.Sink = notify.NewMultiSink(m, logger, sinks...)
	if repo != nil {
		sink = notify.NewRecordingSink(repo, sink, cfg.NotifyTimeout, logger)
	}
	// Each stage above stops at NotifyTimeout; this bounds the chain as a whole.
	return notify.Bounded(sink, cfg.NotifyTimeout+notifyGrace, logger), cleanup, nil
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty")
		return nil
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail:        cfg.EmailFromAddress,
			FromName:         cfg.EmailFromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		return nil
	}
}

func dialAMQP(cfg *appconfig.Config) (*amqp.Channel, func(), error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("bootstrap: open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.AMQPExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("bootstrap: declare exchange %s: %w", cfg.AMQPExchange, err)
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
