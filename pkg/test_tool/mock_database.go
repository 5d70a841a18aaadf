package testtool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"media_pipeline/pkg/database"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore 是 database.BlobStore 的 Mock
type MockBlobStore struct {
	mock.Mock
}

// Put 模擬上傳
func (m *MockBlobStore) Put(ctx context.Context, r io.Reader, meta database.ObjectMeta) (string, error) {
	args := m.Called(ctx, r, meta)
	return args.String(0), args.Error(1)
}

// Get 模擬下載
func (m *MockBlobStore) Get(ctx context.Context, handle string) (*database.Object, error) {
	args := m.Called(ctx, handle)
	obj, _ := args.Get(0).(*database.Object)
	return obj, args.Error(1)
}

// Delete 模擬刪除
func (m *MockBlobStore) Delete(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

// MockQueueClient 是 database.QueueClient 的 Mock
type MockQueueClient struct {
	mock.Mock
}

// DeclareQueue 模擬宣告 queue
func (m *MockQueueClient) DeclareQueue(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// Publish 模擬發布
func (m *MockQueueClient) Publish(ctx context.Context, queue string, msg database.Message) error {
	args := m.Called(ctx, queue, msg)
	return args.Error(0)
}

// Consume 模擬消費
func (m *MockQueueClient) Consume(ctx context.Context, queue string, handler database.Handler) error {
	args := m.Called(ctx, queue, handler)
	return args.Error(0)
}

// Close 模擬關閉
func (m *MockQueueClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MemoryBlobStore is a BlobStore kept in a map
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject

	// PutErr, GetErr and DeleteErr are returned instead of doing the operation when set
	PutErr    error
	GetErr    error
	DeleteErr error
}

type memoryObject struct {
	data []byte
	meta database.ObjectMeta
}

// NewMemoryBlobStore create an empty store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string]memoryObject{}}
}

// Put store all of r under a fresh handle
func (s *MemoryBlobStore) Put(ctx context.Context, r io.Reader, meta database.ObjectMeta) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return "", s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	h := database.NewHandle()
	s.objects[h] = memoryObject{data: data, meta: meta}
	return h, nil
}

// Get open a stored object
func (s *MemoryBlobStore) Get(ctx context.Context, handle string) (*database.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	o, ok := s.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrObjectNotFound, handle)
	}
	return &database.Object{
		Handle: handle,
		Meta:   o.meta,
		Size:   int64(len(o.data)),
		Body:   io.NopCloser(bytes.NewReader(o.data)),
	}, nil
}

// Delete remove a stored object
func (s *MemoryBlobStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.objects, handle)
	return nil
}

// Len number of stored objects
func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Bytes content of a stored object, nil when missing
func (s *MemoryBlobStore) Bytes(handle string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[handle]
	if !ok {
		return nil
	}
	return o.data
}

// MemoryQueue is a QueueClient keeping messages in per-queue slices
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string][]database.Delivery

	// PublishErr is returned by Publish when set
	PublishErr error
	// Settled records every decision Consume applied, in order
	Settled []database.AckDecision
	// Dead holds NackDrop'ed messages per queue
	Dead map[string][]database.Delivery
}

// NewMemoryQueue create an empty broker
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: map[string][]database.Delivery{},
		Dead:   map[string][]database.Delivery{},
	}
}

// DeclareQueue make sure queue exists
func (q *MemoryQueue) DeclareQueue(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name]; !ok {
		q.queues[name] = nil
	}
	return nil
}

// Publish append msg to queue
func (q *MemoryQueue) Publish(ctx context.Context, queue string, msg database.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.PublishErr != nil {
		return q.PublishErr
	}
	q.queues[queue] = append(q.queues[queue], database.Delivery{ID: msg.ID, Body: msg.Body})
	return nil
}

// Messages snapshot of the messages waiting in queue
func (q *MemoryQueue) Messages(queue string) []database.Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]database.Delivery(nil), q.queues[queue]...)
}

// Consume hand messages of queue to handler one at a time, requeued ones go to the back
// marked redelivered. Returns when the queue is empty or ctx is done.
func (q *MemoryQueue) Consume(ctx context.Context, queue string, handler database.Handler) error {
	for ctx.Err() == nil {
		q.mu.Lock()
		if len(q.queues[queue]) == 0 {
			q.mu.Unlock()
			return nil
		}
		d := q.queues[queue][0]
		q.queues[queue] = q.queues[queue][1:]
		q.mu.Unlock()

		decision := handler(ctx, d)

		q.mu.Lock()
		q.Settled = append(q.Settled, decision)
		switch decision {
		case database.NackRequeue:
			d.Redelivered = true
			q.queues[queue] = append(q.queues[queue], d)
		case database.NackDrop:
			q.Dead[queue] = append(q.Dead[queue], d)
		}
		q.mu.Unlock()
	}
	return nil
}

// Close no-op
func (q *MemoryQueue) Close() error {
	return nil
}

var (
	_ database.BlobStore   = (*MockBlobStore)(nil)
	_ database.BlobStore   = (*MemoryBlobStore)(nil)
	_ database.QueueClient = (*MockQueueClient)(nil)
	_ database.QueueClient = (*MemoryQueue)(nil)
)
