// Package notify fans out critical forecast alerts to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/logging"
)

// DatedAlert is an alert together with the forecast day that raised it.
type DatedAlert struct {
	Date  forecast.Date  `json:"date"`
	Alert forecast.Alert `json:"alert"`
}

// Publisher delivers alerts. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishAlerts(ctx context.Context, alerts []DatedAlert) error
	Close() error
}

// CriticalAlerts collects the critical alerts of a forecast in day order.
func CriticalAlerts(result *forecast.Result) []DatedAlert {
	var out []DatedAlert
	for _, day := range result.Forecast {
		for _, a := range day.Alerts {
			if a.Severity == forecast.SeverityCritical {
				out = append(out, DatedAlert{Date: day.Date, Alert: a})
			}
		}
	}
	return out
}

// NopPublisher discards alerts.
type NopPublisher struct{}

func (NopPublisher) PublishAlerts(context.Context, []DatedAlert) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per alert, keyed by forecast date.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger logging.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaPublisher(writer, topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.WithField(logging.FieldComponent, "notify"),
	}
}

func (p *KafkaPublisher) PublishAlerts(ctx context.Context, alerts []DatedAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(a.Date.String()), Value: data})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d alerts to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("Alerts published", logging.F(logging.FieldCount, len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
