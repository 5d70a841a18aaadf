// Package infra opens the broker and blob store connections every service shares.
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media_pipeline/pkg/config"
	"media_pipeline/pkg/database"
)

const (
	// DefaultJobQueue carries job records
	DefaultJobQueue = "video"
	// DefaultNotificationQueue carries notification events
	DefaultNotificationQueue = "mp3"
)

// QueueNames fills unset queue names with the defaults
func QueueNames(q config.QueueConfig) config.QueueConfig {
	if q.Job == "" {
		q.Job = DefaultJobQueue
	}
	if q.Notification == "" {
		q.Notification = DefaultNotificationQueue
	}
	return q
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// OpenQueue connect to RabbitMQ with retry and declare both pipeline queues.
// An exhausted retry returns an error matching database.ErrConnect.
func OpenQueue(ctx context.Context, r config.RabbitMQConfig, q config.QueueConfig, workers int) (*database.RabbitMQ, error) {
	conn, err := database.ConnectRabbitMQWithRetry(ctx, database.Connection{
		ConnectStr:    r.URL(),
		RetryCount:    r.RetryCount,
		RetryInterval: seconds(r.RetryInterval),
	})
	if err != nil {
		return nil, err
	}

	client, err := database.NewRabbitMQ(conn, database.RabbitMQOptions{
		PublisherConfirms: r.PublisherConfirms,
		Prefetch:          r.Prefetch,
		Workers:           workers,
		RequeueDelay:      r.RequeueDelay,
		DeadLetter:        q.DeadLetter,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	q = QueueNames(q)
	for _, name := range []string{q.Job, q.Notification} {
		if err := client.DeclareQueue(name); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}

// Stores the source and result blob stores of one backend
type Stores struct {
	Source database.BlobStore
	Result database.BlobStore
	close  func(ctx context.Context) error
}

// Close release the backend connections
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStores connect the configured backend, "gridfs" (default) or "minio"
func OpenStores(ctx context.Context, s config.StoreConfig) (*Stores, error) {
	switch s.Backend {
	case "", "gridfs":
		return openGridFS(ctx, s.Mongo)
	case "minio":
		return openMinIO(ctx, s.MinIO)
	}
	return nil, fmt.Errorf("unknown store backend %q", s.Backend)
}

func openGridFS(ctx context.Context, m config.MongoConfig) (*Stores, error) {
	if m.SourceDatabase == "" || m.ResultDatabase == "" {
		return nil, errors.New("gridfs: source_database and result_database are required")
	}

	src, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    m.URI,
		RetryCount:    m.RetryCount,
		RetryInterval: seconds(m.RetryInterval),
	}, m.SourceDatabase)
	if err != nil {
		return nil, err
	}
	// one client serves both databases
	res := &database.MongoDB{Client: src.Client, Database: src.Client.Database(m.ResultDatabase)}

	source, err := database.NewGridFSStore(src)
	if err != nil {
		src.Close(ctx)
		return nil, err
	}
	result, err := database.NewGridFSStore(res)
	if err != nil {
		src.Close(ctx)
		return nil, err
	}

	return &Stores{Source: source, Result: result, close: src.Close}, nil
}

func openMinIO(ctx context.Context, m config.MinIOConfig) (*Stores, error) {
	if m.SourceBucket == "" || m.ResultBucket == "" {
		return nil, errors.New("minio: source_bucket and result_bucket are required")
	}

	conn := func(bucket string) database.MinIOConnection {
		return database.MinIOConnection{
			Endpoint:      fmt.Sprintf("%s:%d", m.Host, m.Port),
			User:          m.User,
			Password:      m.Password,
			BucketName:    bucket,
			UseSSL:        m.UseSSL,
			RetryCount:    m.RetryCount,
			RetryInterval: seconds(m.RetryInterval),
		}
	}

	source, err := database.NewMinIOConnection(ctx, conn(m.SourceBucket))
	if err != nil {
		return nil, err
	}
	result, err := database.NewMinIOConnection(ctx, conn(m.ResultBucket))
	if err != nil {
		return nil, err
	}
	return &Stores{Source: source, Result: result}, nil
}
