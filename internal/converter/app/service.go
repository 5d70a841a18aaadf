package app

import (
	"context"

	"media_pipeline/internal/pipeline/infra"
	"media_pipeline/pkg/database"
)

// ServiceName is reported by the health service
const ServiceName = "converter"

// NewService consume jobQueue with the Worker built by newWorker once connect succeeds
func NewService(
	connect func(ctx context.Context) (database.QueueClient, error),
	newWorker func(queue database.QueueClient) (*Worker, error),
	jobQueue string,
	health *database.HealthServer,
) *infra.Consumer {
	return &infra.Consumer{
		Name:    ServiceName,
		Queue:   jobQueue,
		Connect: connect,
		Setup: func(queue database.QueueClient) (database.Handler, error) {
			w, err := newWorker(queue)
			if err != nil {
				return nil, err
			}
			return w.Handle, nil
		},
		Health: health,
	}
}
