package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media_pipeline/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// amqpDial wrapper for test
var amqpDial = amqp.Dial

// errChannelClosed returned by Consume when the broker closes the delivery channel
var errChannelClosed = errors.New("delivery channel closed by broker")

// amqpChannel is the part of *amqp.Channel the client uses
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQOptions definition queue client behaviour
type RabbitMQOptions struct {
	// PublisherConfirms makes Publish wait for the broker ack
	PublisherConfirms bool
	// Prefetch in-flight deliveries per consumer, defaults to Workers
	Prefetch int
	// Workers goroutines handling deliveries, default 1
	Workers int
	// RequeueDelay wait before a NackRequeue is sent
	RequeueDelay time.Duration
	// DeadLetter declares <queue>.dead and routes dropped messages there
	DeadLetter bool
}

// RabbitMQ implements QueueClient on streadway/amqp
type RabbitMQ struct {
	conn        *amqp.Connection
	openChannel func() (amqpChannel, error)
	opts        RabbitMQOptions

	mu        sync.Mutex
	publisher amqpChannel
	confirms  <-chan amqp.Confirmation
	seq       uint64
}

var _ QueueClient = (*RabbitMQ)(nil)

// ConnectRabbitMQWithRetry dial RabbitMQ, bounded by d.RetryCount attempts d.RetryInterval apart
func ConnectRabbitMQWithRetry(ctx context.Context, d Connection) (*amqp.Connection, error) {
	var conn *amqp.Connection
	err := WithRetry(ctx, d, "RabbitMQ", func() error {
		var err error
		conn, err = amqpDial(d.ConnectStr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewRabbitMQ create a queue client on an open connection
func NewRabbitMQ(conn *amqp.Connection, opts RabbitMQOptions) (*RabbitMQ, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}

	r := &RabbitMQ{
		conn: conn,
		openChannel: func() (amqpChannel, error) {
			return conn.Channel()
		},
		opts:      opts.withDefaults(),
		publisher: ch,
	}

	if opts.PublisherConfirms {
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("enable publisher confirms: %w", err)
		}
		r.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 64))
	}
	return r, nil
}

func (o RabbitMQOptions) withDefaults() RabbitMQOptions {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Prefetch < o.Workers {
		o.Prefetch = o.Workers
	}
	return o
}

// DeadLetterQueue name of the queue that receives dropped messages of queue
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

// DeclareQueue declare a durable queue, safe to call repeatedly
func (r *RabbitMQ) DeclareQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var args amqp.Table
	if r.opts.DeadLetter {
		dead := DeadLetterQueue(name)
		if _, err := r.publisher.QueueDeclare(dead, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dead, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dead,
		}
	}

	if _, err := r.publisher.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// Publish send a persistent message to queue through the default exchange
func (r *RabbitMQ) Publish(ctx context.Context, queue string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.publisher.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now(),
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	if r.confirms == nil {
		return nil
	}
	r.seq++
	for {
		select {
		case c, ok := <-r.confirms:
			if !ok {
				return fmt.Errorf("publish to %s: confirm channel closed", queue)
			}
			if c.DeliveryTag < r.seq {
				// left over from a publish whose caller gave up waiting
				continue
			}
			if !c.Ack {
				return fmt.Errorf("publish to %s: broker nacked message %s", queue, msg.ID)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", queue, ctx.Err())
		}
	}
}

// Consume deliver messages of queue to handler and settle each one with its decision.
// Returns nil once ctx is done and in-flight handlers have settled.
func (r *RabbitMQ) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := r.openChannel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(r.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	logger.Log.Info("consuming", zap.String("queue", queue), zap.Int("workers", r.opts.Workers))
	return r.consumeLoop(ctx, deliveries, handler)
}

func (r *RabbitMQ) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) error {
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					decision := handler(ctx, Delivery{
						ID:          d.MessageId,
						Body:        d.Body,
						Redelivered: d.Redelivered,
					})
					if err := r.settle(ctx, d, decision); err != nil {
						logger.Log.Error("settle delivery failed",
							zap.String("message_id", d.MessageId),
							zap.String("decision", decision.String()),
							zap.Error(err))
					}
				}
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return errChannelClosed
}

func (r *RabbitMQ) settle(ctx context.Context, d amqp.Delivery, decision AckDecision) error {
	switch decision {
	case Ack:
		return d.Ack(false)
	case NackRequeue:
		if r.opts.RequeueDelay > 0 {
			t := time.NewTimer(r.opts.RequeueDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

// Close close channel and connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}
