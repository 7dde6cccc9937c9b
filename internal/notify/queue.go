package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// LeadCapturedEvent is the event type stamped on queued lead messages.
const LeadCapturedEvent = "lead.captured.v1"

// EventMeta describes a queued lead event.
type EventMeta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer,omitempty"`
	Time     time.Time `json:"time"`
}

// Envelope wraps a lead record for downstream consumers.
type Envelope struct {
	Meta EventMeta    `json:"meta"`
	Data leads.Record `json:"data"`
}

// NewEnvelope wraps record with metadata keyed by the record id.
func NewEnvelope(record leads.Record, producer string) Envelope {
	ts := record.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Envelope{
		Meta: EventMeta{
			ID:       record.ID,
			Type:     LeadCapturedEvent,
			Producer: producer,
			Time:     ts,
		},
		Data: record,
	}
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink enqueues lead envelopes on an SQS queue.
type SQSSink struct {
	client   sqsAPI
	queueURL string
	producer string
	logger   *logging.Logger
}

// NewSQSSink creates a queue-backed sink.
func NewSQSSink(client sqsAPI, queueURL, producer string, logger *logging.Logger) *SQSSink {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSSink{client: client, queueURL: queueURL, producer: producer, logger: logger}
}

// Notify sends one message per record.
func (s *SQSSink) Notify(ctx context.Context, record leads.Record) bool {
	body, err := json.Marshal(NewEnvelope(record, s.producer))
	if err != nil {
		s.logger.Error("failed to encode lead event", "error", err)
		return false
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(LeadCapturedEvent)},
		},
	})
	if err != nil {
		s.logger.Error("failed to send lead to SQS", "error", err, "lead_id", record.ID)
		return false
	}
	return true
}

// AMQPPublisher is the subset of *amqp.Channel the AMQP sink uses.
type AMQPPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes lead envelopes to a RabbitMQ exchange.
type AMQPSink struct {
	publisher  AMQPPublisher
	exchange   string
	routingKey string
	producer   string
	logger     *logging.Logger
}

// NewAMQPSink creates an exchange-backed sink.
func NewAMQPSink(publisher AMQPPublisher, exchange, routingKey, producer string, logger *logging.Logger) *AMQPSink {
	if publisher == nil {
		panic("notify: AMQP publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AMQPSink{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		producer:   producer,
		logger:     logger,
	}
}

// BuildPublishing renders the persistent JSON message published for record.
func BuildPublishing(record leads.Record, producer string) (amqp.Publishing, error) {
	env := NewEnvelope(record, producer)
	body, err := json.Marshal(env)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("notify: marshal envelope: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.ID,
		Type:         env.Meta.Type,
		Timestamp:    env.Meta.Time,
		AppId:        producer,
	}, nil
}

// Notify publishes one message per record.
func (s *AMQPSink) Notify(ctx context.Context, record leads.Record) bool {
	msg, err := BuildPublishing(record, s.producer)
	if err != nil {
		s.logger.Error("failed to encode lead event", "error", err)
		return false
	}
	if err := s.publisher.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, msg); err != nil {
		s.logger.Error("failed to publish lead", "error", err, "exchange", s.exchange, "lead_id", record.ID)
		return false
	}
	return true
}
