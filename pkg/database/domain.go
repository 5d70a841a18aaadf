package database

import (
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrConnect returned when a backend stays unreachable after every retry
	ErrConnect = errors.New("connect retries exhausted")
	// ErrObjectNotFound returned by a BlobStore for an unknown handle
	ErrObjectNotFound = errors.New("object not found")
)

// Connection definition connect setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// MongoDB definition mongo db
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MinIOConnection definition minio
type MinIOConnection struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

// ObjectMeta is stored next to the bytes
type ObjectMeta struct {
	FileName    string
	ContentType string
	Owner       string
}

// Object is an opened stored object, the caller must close Body
type Object struct {
	Handle string
	Meta   ObjectMeta
	Size   int64
	Body   io.ReadCloser
}

// BlobStore definition blob store
type BlobStore interface {
	// Put stores r and returns a fresh handle
	Put(ctx context.Context, r io.Reader, meta ObjectMeta) (string, error)
	// Get opens the object, ErrObjectNotFound when the handle is unknown
	Get(ctx context.Context, handle string) (*Object, error)
	Delete(ctx context.Context, handle string) error
}

// Message is one outgoing queue message
type Message struct {
	ID   string
	Body []byte
}

// Delivery is one incoming queue message
type Delivery struct {
	ID          string
	Body        []byte
	Redelivered bool
}

// AckDecision tells the queue client how to settle a delivery
type AckDecision int

const (
	// Ack removes the message
	Ack AckDecision = iota
	// NackRequeue gives the message back for redelivery
	NackRequeue
	// NackDrop rejects the message, dead-lettered when the queue has one
	NackDrop
)

func (a AckDecision) String() string {
	switch a {
	case Ack:
		return "ack"
	case NackRequeue:
		return "nack_requeue"
	case NackDrop:
		return "nack_drop"
	}
	return "unknown"
}

// Handler processes one delivery and decides how it is settled
type Handler func(ctx context.Context, d Delivery) AckDecision

// QueueClient definition queue client
type QueueClient interface {
	DeclareQueue(name string) error
	Publish(ctx context.Context, queue string, msg Message) error
	// Consume blocks until ctx is done or the broker closes the channel
	Consume(ctx context.Context, queue string, handler Handler) error
	Close() error
}
