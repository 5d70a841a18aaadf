package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"media_pipeline/internal/notification/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/config"
	"media_pipeline/pkg/database"
	errprocess "media_pipeline/pkg/err"
	"media_pipeline/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// sink names accepted in sinks.enabled
const (
	SinkLog       = "log"
	SinkWebhook   = "webhook"
	SinkKafka     = "kafka"
	SinkNATS      = "nats"
	SinkWebsocket = "websocket"
)

const defaultWebhookTimeout = 5 * time.Second

// LogSink writes one structured log line per event
type LogSink struct{}

// Name sink name
func (LogSink) Name() string { return SinkLog }

// Deliver never fails
func (LogSink) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("job_id", ev.JobID),
		zap.String("owner", ev.OwnerIdentity),
		zap.String("source_handle", ev.SourceHandle),
		zap.String("status", string(ev.Status)),
	}
	if ev.ResultHandle != nil {
		fields = append(fields, zap.String("result_handle", *ev.ResultHandle))
	}
	if ev.ErrorDetail != "" {
		fields = append(fields, zap.String("error_detail", ev.ErrorDetail))
	}
	logger.Log.Info("conversion finished", fields...)
	return nil
}

// WebhookSink POSTs the event as JSON
type WebhookSink struct {
	URL     string
	Timeout time.Duration
}

// Name sink name
func (s *WebhookSink) Name() string { return SinkWebhook }

// Deliver any non-2xx answer is an error
func (s *WebhookSink) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 || ctx.Err() != nil {
		return fmt.Errorf("webhook %s: %w", s.URL, context.DeadlineExceeded)
	}

	agent := fiber.Post(s.URL).JSON(ev).Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", s.URL, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return fmt.Errorf("webhook %s: status %d: %s", s.URL, code, tail(string(body), 256))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// kafkaWriter is the part of *kafka.Writer the sink uses
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes the event keyed by owner so one owner's events stay ordered
type KafkaSink struct {
	writer kafkaWriter
}

// NewKafkaSink wrap w
func NewKafkaSink(w kafkaWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

// Name sink name
func (s *KafkaSink) Name() string { return SinkKafka }

// Deliver write the event and wait for the brokers
func (s *KafkaSink) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OwnerIdentity),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close the writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// natsPublisher is the part of *nats.Conn the sink uses
type natsPublisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSSink publishes the event JSON on one subject
type NATSSink struct {
	conn    natsPublisher
	subject string
}

// NewNATSSink wrap conn
func NewNATSSink(conn natsPublisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

// Name sink name
func (s *NATSSink) Name() string { return SinkNATS }

// Deliver publish then flush so a lost server surfaces as an error here
func (s *NATSSink) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	body, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, body); err != nil {
		return fmt.Errorf("nats publish %s: %w", s.subject, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush %s: %w", s.subject, err)
	}
	return nil
}

// Close the connection
func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}

// MultiSink fans an event out to every member, it fails if any member fails
type MultiSink struct {
	sinks []domain.Sink
}

// NewMultiSink combine sinks
func NewMultiSink(sinks ...domain.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Name lists the member names
func (m *MultiSink) Name() string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Deliver try every member, the errors of the failed ones are joined
func (m *MultiSink) Deliver(ctx context.Context, ev pipeline.NotificationEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close every member that holds a connection
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// NewSinks build the sinks named in cfg.Enabled, log only when nothing is enabled.
// hub must be non-nil when "websocket" is enabled.
func NewSinks(ctx context.Context, cfg config.SinkConfig, hub *Hub) (*MultiSink, error) {
	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = []string{SinkLog}
	}

	multi := NewMultiSink()
	for _, name := range enabled {
		s, err := newSink(ctx, name, cfg, hub)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi.sinks = append(multi.sinks, s)
	}
	return multi, nil
}

func newSink(ctx context.Context, name string, cfg config.SinkConfig, hub *Hub) (domain.Sink, error) {
	switch name {
	case SinkLog:
		return LogSink{}, nil
	case SinkWebhook:
		if cfg.Webhook.URL == "" {
			return nil, errprocess.Set("webhook sink: url is required")
		}
		return &WebhookSink{URL: cfg.Webhook.URL, Timeout: cfg.Webhook.Timeout}, nil
	case SinkKafka:
		w, err := database.NewKafkaWriterWithRetry(ctx, database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		return NewKafkaSink(w), nil
	case SinkNATS:
		nc, err := database.NewNATSConnection(ctx, database.Connection{
			ConnectStr:    cfg.NATS.URL,
			RetryCount:    cfg.NATS.RetryCount,
			RetryInterval: time.Duration(cfg.NATS.RetryInterval) * time.Second,
		}, ServiceName)
		if err != nil {
			return nil, fmt.Errorf("nats sink: %w", err)
		}
		return NewNATSSink(nc, cfg.NATS.Subject), nil
	case SinkWebsocket:
		if hub == nil {
			return nil, errprocess.Set("websocket sink: no hub")
		}
		return hub, nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
