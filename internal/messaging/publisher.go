package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MassTransit wraps messages in an envelope for compatibility with C# MassTransit consumers.
// See: https://masstransit.io/documentation/concepts/messages#message-headers
type massTransitEnvelope struct {
	MessageID   string            `json:"messageId"`
	MessageType []string          `json:"messageType"`
	Headers     map[string]string `json:"headers"`
	Message     any               `json:"message"`
	SentTime    time.Time         `json:"sentTime"`
	Host        massTransitHost   `json:"host"`
}

type massTransitHost struct {
	MachineName     string `json:"machineName"`
	ProcessName     string `json:"processName"`
	ProcessID       int    `json:"processId"`
	Assembly        string `json:"assembly"`
	AssemblyVersion string `json:"assemblyVersion"`
}

// Publisher sends events to RabbitMQ in MassTransit envelope format.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

// NewPublisher creates a Publisher connected to the given AMQP URL.
// If url is empty, returns a no-op publisher that logs events instead of sending them.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		logger.Info("RabbitMQ URL not configured, using no-op publisher")
		return &Publisher{logger: logger}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	return &Publisher{
		conn:   conn,
		ch:     ch,
		logger: logger,
	}, nil
}

// Publish sends an event message to the exchange derived from its type.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	typeName, exchangeName := eventMeta(event)

	body, err := encodeEnvelope(event, typeName)
	if err != nil {
		return err
	}

	// No-op mode: just log.
	if p.ch == nil {
		p.logger.Info("event published (no-op)", "type", typeName, "exchange", exchangeName)
		return nil
	}

	if err := p.ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchangeName, err)
	}

	return p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/vnd.masstransit+json",
		MessageId:   generateID(),
		Body:        body,
	})
}

// Close cleanly shuts down the AMQP connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func encodeEnvelope(event any, typeName string) ([]byte, error) {
	hostname, _ := os.Hostname()

	envelope := massTransitEnvelope{
		MessageID:   generateID(),
		MessageType: []string{typeName},
		Headers:     map[string]string{},
		Message:     event,
		SentTime:    time.Now().UTC(),
		Host: massTransitHost{
			MachineName:     hostname,
			ProcessName:     "reachability",
			ProcessID:       os.Getpid(),
			Assembly:        "toska-mesh-reachability",
			AssemblyVersion: "1.0.0",
		},
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func eventMeta(event any) (typeName, exchangeName string) {
	switch event.(type) {
	case ReachabilityChangedEvent:
		return "urn:message:ToskaMesh.Common.Messaging:ReachabilityChangedEvent",
			"ToskaMesh.Common.Messaging:ReachabilityChangedEvent"
	case MonitorResetEvent:
		return "urn:message:ToskaMesh.Common.Messaging:MonitorResetEvent",
			"ToskaMesh.Common.Messaging:MonitorResetEvent"
	default:
		return "urn:message:Unknown", "Unknown"
	}
}

func generateID() string {
	return uuid.NewString()
}
