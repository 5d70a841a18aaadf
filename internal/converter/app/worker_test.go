package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"media_pipeline/internal/converter/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger is a LedgerRepo kept in a map
type memLedger struct {
	mu      sync.Mutex
	entries map[string]*domain.LedgerEntry
	FindErr error
	SaveErr error
	// StaleFinds is how many Find calls still miss, as when another worker saves in between
	StaleFinds int
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string]*domain.LedgerEntry{}}
}

func (l *memLedger) AutoMigrate() error { return nil }

func (l *memLedger) Find(ctx context.Context, sourceHandle string) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FindErr != nil {
		return nil, l.FindErr
	}
	if l.StaleFinds > 0 {
		l.StaleFinds--
		return nil, nil
	}
	return l.entries[sourceHandle], nil
}

func (l *memLedger) Save(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SaveErr != nil {
		return false, l.SaveErr
	}
	if _, ok := l.entries[entry.SourceHandle]; ok {
		return false, nil
	}
	l.entries[entry.SourceHandle] = entry
	return true, nil
}

// transformFunc adapts a func to domain.Transformer
type transformFunc func(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error)

func (f transformFunc) Transform(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error) {
	return f(ctx, req)
}

type fixture struct {
	source *testtool.MemoryBlobStore
	result *testtool.MemoryBlobStore
	queue  *testtool.MemoryQueue
	ledger *memLedger
	worker *Worker
}

func newFixture(t *testing.T, tr domain.Transformer) *fixture {
	t.Helper()
	logger.SetNewNop()
	now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { now = time.Now })

	f := &fixture{
		source: testtool.NewMemoryBlobStore(),
		result: testtool.NewMemoryBlobStore(),
		queue:  testtool.NewMemoryQueue(),
		ledger: newMemLedger(),
	}
	if tr == nil {
		tr = PassthroughTransformer{}
	}
	f.worker = NewWorker(f.source, f.result, f.queue, f.ledger, tr, "mp3")
	return f
}

// enqueue store payload for owner and publish its job record, as the gateway does
func (f *fixture) enqueue(t *testing.T, payload, owner string) pipeline.JobRecord {
	t.Helper()
	h, err := f.source.Put(context.Background(), strings.NewReader(payload), database.ObjectMeta{
		FileName: "clip.mp4", ContentType: "video/mp4", Owner: owner,
	})
	require.NoError(t, err)
	return f.publishJob(t, pipeline.NewJobRecord(h, owner, "clip.mp4", "video/mp4", now()))
}

func (f *fixture) publishJob(t *testing.T, job pipeline.JobRecord) pipeline.JobRecord {
	t.Helper()
	body, err := job.Encode()
	require.NoError(t, err)
	require.NoError(t, f.queue.Publish(context.Background(), "video", database.Message{ID: job.JobID, Body: body}))
	return job
}

func (f *fixture) events(t *testing.T) []pipeline.NotificationEvent {
	t.Helper()
	var out []pipeline.NotificationEvent
	for _, d := range f.queue.Messages("mp3") {
		ev, err := pipeline.DecodeNotificationEvent(d.Body)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func delivery(t *testing.T, job pipeline.JobRecord) database.Delivery {
	t.Helper()
	body, err := job.Encode()
	require.NoError(t, err)
	return database.Delivery{ID: job.JobID, Body: body}
}

func TestWorker_AbcAlice(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")

	require.NoError(t, f.queue.Consume(context.Background(), "video", f.worker.Handle))

	assert.Equal(t, []database.AckDecision{database.Ack}, f.queue.Settled)
	require.Equal(t, 1, f.result.Len())

	events := f.events(t)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, pipeline.StatusSuccess, ev.Status)
	assert.Equal(t, "alice", ev.OwnerIdentity)
	assert.Equal(t, job.SourceHandle, ev.SourceHandle)
	assert.Equal(t, job.JobID, ev.JobID)
	require.NotNil(t, ev.ResultHandle)
	assert.Equal(t, []byte("abc"), f.result.Bytes(*ev.ResultHandle))
	assert.Equal(t, "video/mp4", func() string {
		obj, err := f.result.Get(context.Background(), *ev.ResultHandle)
		require.NoError(t, err)
		return obj.Meta.ContentType
	}())
}

func TestWorker_RedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")

	// 第一次處理完但 ack 沒送到 broker, 訊息被重送
	crashed := false
	handler := func(ctx context.Context, d database.Delivery) database.AckDecision {
		decision := f.worker.Handle(ctx, d)
		if !crashed {
			crashed = true
			return database.NackRequeue
		}
		return decision
	}
	require.NoError(t, f.queue.Consume(context.Background(), "video", handler))

	assert.Equal(t, []database.AckDecision{database.NackRequeue, database.Ack}, f.queue.Settled)
	assert.Equal(t, 1, f.result.Len(), "redelivery must not convert twice")

	events := f.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, events[0], events[1], "redelivery republishes the same event")
	assert.Equal(t, job.SourceHandle, events[0].SourceHandle)
}

func TestWorker_PoisonMessage(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.queue.Publish(context.Background(), "video", database.Message{ID: "x", Body: []byte("{not json")}))

	missingOwner := pipeline.NewJobRecord(database.NewHandle(), "", "a", "b", now())
	f.publishJob(t, missingOwner)

	require.NoError(t, f.queue.Consume(context.Background(), "video", f.worker.Handle))

	assert.Equal(t, []database.AckDecision{database.NackDrop, database.NackDrop}, f.queue.Settled)
	assert.Len(t, f.queue.Dead["video"], 2)
	assert.Empty(t, f.events(t))
}

func TestWorker_SourceMissing(t *testing.T) {
	f := newFixture(t, nil)
	job := pipeline.NewJobRecord(database.NewHandle(), "alice", "clip.mp4", "video/mp4", now())

	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, pipeline.StatusFailure, events[0].Status)
	assert.Nil(t, events[0].ResultHandle)
	assert.Contains(t, events[0].ErrorDetail, "not found")
	assert.Zero(t, f.result.Len())
}

func TestWorker_SourceStoreDown(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	f.source.GetErr = errors.New("mongo: connection refused")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Empty(t, f.events(t))
}

func TestWorker_TransientTransform(t *testing.T) {
	f := newFixture(t, transformFunc(func(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error) {
		return nil, pipeline.Transient(context.DeadlineExceeded)
	}))
	job := f.enqueue(t, "abc", "alice")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Empty(t, f.events(t))
	assert.Zero(t, f.result.Len())
}

func TestWorker_PermanentTransform(t *testing.T) {
	f := newFixture(t, transformFunc(func(ctx context.Context, req domain.TransformReq) (*domain.TransformRes, error) {
		return nil, pipeline.Permanent(errors.New("ffmpeg exited with status 1: Invalid data"))
	}))
	job := f.enqueue(t, "abc", "alice")

	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, pipeline.StatusFailure, events[0].Status)
	assert.Contains(t, events[0].ErrorDetail, "Invalid data")
	assert.Zero(t, f.result.Len())

	// 重送時重發同一個 failure event
	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))
	events = f.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, events[0].EventID, events[1].EventID)
}

func TestWorker_ResultStoreDown(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	f.result.PutErr = errors.New("gridfs upload: timeout")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Empty(t, f.events(t))
}

func TestWorker_PublishFails_NoLedger_DeletesResult(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	f.ledger.SaveErr = errors.New("pg down")
	f.queue.PublishErr = errors.New("channel closed")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Zero(t, f.result.Len(), "unrecorded result must not be orphaned")
}

func TestWorker_PublishFails_ThenRedelivered(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")

	f.queue.PublishErr = errors.New("channel closed")
	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Equal(t, 1, f.result.Len(), "recorded result is kept for the redelivery")

	f.queue.PublishErr = nil
	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, 1, f.result.Len())
	assert.Equal(t, []byte("abc"), f.result.Bytes(*events[0].ResultHandle))
}

// winner records a success for job as a concurrent worker would, its result already stored
func (f *fixture) winner(t *testing.T, job pipeline.JobRecord) pipeline.NotificationEvent {
	t.Helper()
	h, err := f.result.Put(context.Background(), strings.NewReader("abc"), database.ObjectMeta{Owner: job.OwnerIdentity})
	require.NoError(t, err)
	ev := pipeline.NewSuccessEvent(job, h, now())
	inserted, err := f.ledger.Save(context.Background(), domain.NewLedgerEntry(ev))
	require.NoError(t, err)
	require.True(t, inserted)
	f.ledger.StaleFinds = 1
	return ev
}

func TestWorker_LostLedgerRace_PublishesWinner(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	won := f.winner(t, job)

	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, won, events[0])
	assert.Equal(t, 1, f.result.Len(), "only the winner's result is kept")
	assert.Equal(t, []byte("abc"), f.result.Bytes(*won.ResultHandle))
}

func TestWorker_LostLedgerRace_PublishFails(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	won := f.winner(t, job)
	f.queue.PublishErr = errors.New("channel closed")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Equal(t, 1, f.result.Len(), "the losing result is deleted")
	assert.NotNil(t, f.result.Bytes(*won.ResultHandle))

	f.queue.PublishErr = nil
	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))
	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, won.EventID, events[0].EventID)
}

func TestWorker_LostLedgerRace_ReloadFails(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	f.winner(t, job)
	f.ledger.StaleFinds = 0
	f.ledger.FindErr = errors.New("pg down")

	assert.Equal(t, database.NackRequeue, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Equal(t, 1, f.result.Len())
	assert.Empty(t, f.events(t))
}

func TestWorker_LedgerDown_StillConverts(t *testing.T) {
	f := newFixture(t, nil)
	job := f.enqueue(t, "abc", "alice")
	f.ledger.FindErr = errors.New("pg down")
	f.ledger.SaveErr = errors.New("pg down")

	assert.Equal(t, database.Ack, f.worker.Handle(context.Background(), delivery(t, job)))
	assert.Len(t, f.events(t), 1)
}

func TestWorker_NoLedger(t *testing.T) {
	logger.SetNewNop()
	source, result, queue := testtool.NewMemoryBlobStore(), testtool.NewMemoryBlobStore(), testtool.NewMemoryQueue()
	w := NewWorker(source, result, queue, nil, PassthroughTransformer{}, "mp3")

	h, err := source.Put(context.Background(), strings.NewReader("abc"), database.ObjectMeta{Owner: "alice"})
	require.NoError(t, err)
	job := pipeline.NewJobRecord(h, "alice", "", "", time.Unix(1700000000, 0))

	assert.Equal(t, database.Ack, w.Handle(context.Background(), delivery(t, job)))
	assert.Len(t, queue.Messages("mp3"), 1)
}
