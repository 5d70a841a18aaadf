package infra

import (
	"context"
	"fmt"

	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// Consumer connects a queue client and feeds one queue to a handler until ctx is done
type Consumer struct {
	Name  string
	Queue string
	// Connect opens the queue client, an exhausted retry must return database.ErrConnect
	Connect func(ctx context.Context) (database.QueueClient, error)
	// Setup builds the handler once the queue is open
	Setup  func(queue database.QueueClient) (database.Handler, error)
	Health *database.HealthServer
}

// Run connect, then consume. Nothing is consumed when the connect fails.
func (c *Consumer) Run(ctx context.Context) error {
	queue, err := c.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%s connect: %w", c.Name, err)
	}
	defer queue.Close()

	handler, err := c.Setup(queue)
	if err != nil {
		return fmt.Errorf("%s setup: %w", c.Name, err)
	}

	if c.Health != nil {
		c.Health.SetServing(true)
		defer c.Health.SetServing(false)
	}

	logger.Log.Info("consuming", zap.String("service", c.Name), zap.String("queue", c.Queue))
	if err := queue.Consume(ctx, c.Queue, handler); err != nil {
		return fmt.Errorf("%s consume %s: %w", c.Name, c.Queue, err)
	}
	logger.Log.Info("consumer stopped", zap.String("service", c.Name))
	return nil
}
