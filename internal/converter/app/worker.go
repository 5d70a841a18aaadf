package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"media_pipeline/internal/converter/domain"
	"media_pipeline/internal/converter/repository"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// 讓 test 固定時間
var now = time.Now

// Worker converts one job record per delivery and publishes its outcome.
// A delivery is acked only after the outcome is durably published.
type Worker struct {
	source            database.BlobStore
	result            database.BlobStore
	queue             database.QueueClient
	ledger            repository.LedgerRepo
	transformer       domain.Transformer
	notificationQueue string
}

// NewWorker 建構 Worker, ledger may be nil to run without redelivery dedupe
func NewWorker(source, result database.BlobStore, queue database.QueueClient, ledger repository.LedgerRepo,
	transformer domain.Transformer, notificationQueue string) *Worker {
	return &Worker{
		source:            source,
		result:            result,
		queue:             queue,
		ledger:            ledger,
		transformer:       transformer,
		notificationQueue: notificationQueue,
	}
}

// Handle process one job queue delivery
func (w *Worker) Handle(ctx context.Context, d database.Delivery) database.AckDecision {
	log := logger.Log.With(zap.String("message_id", d.ID), zap.Bool("redelivered", d.Redelivered))

	// 1. 解析 job record, 壞訊息直接丟到 dead letter
	job, err := pipeline.DecodeJobRecord(d.Body)
	if err != nil {
		log.Error("poison job record", zap.Error(err))
		return database.NackDrop
	}
	log = log.With(zap.String("job_id", job.JobID), zap.String("source_handle", job.SourceHandle))

	// 2. 已經處理過的 source 只重發當初的事件
	if entry := w.lookup(ctx, log, job.SourceHandle); entry != nil {
		log.Info("source already converted, republishing outcome", zap.String("event_id", entry.EventID))
		if err := w.publish(ctx, entry.Event()); err != nil {
			log.Error("republish outcome failed", zap.Error(err))
			return database.NackRequeue
		}
		return database.Ack
	}

	// 3. 讀取 source
	obj, err := w.source.Get(ctx, job.SourceHandle)
	if errors.Is(err, database.ErrObjectNotFound) {
		return w.fail(ctx, log, job, "source object not found")
	}
	if err != nil {
		log.Error("get source failed", zap.Error(err))
		return database.NackRequeue
	}
	defer obj.Body.Close()

	// 4. 轉檔
	res, err := w.transformer.Transform(ctx, domain.TransformReq{
		Input:       obj.Body,
		FileName:    obj.Meta.FileName,
		ContentType: obj.Meta.ContentType,
	})
	if err != nil {
		if pipeline.IsTransient(err) || !errors.Is(err, pipeline.ErrTransform) {
			log.Warn("transform failed, will retry", zap.Error(err))
			return database.NackRequeue
		}
		return w.fail(ctx, log, job, err.Error())
	}

	// 5. 存入 result store
	resultHandle, err := w.result.Put(ctx, bytes.NewReader(res.Data), database.ObjectMeta{
		FileName:    obj.Meta.FileName,
		ContentType: res.ContentType,
		Owner:       job.OwnerIdentity,
	})
	if err != nil {
		log.Error("put result failed", zap.Error(err))
		return database.NackRequeue
	}
	log = log.With(zap.String("result_handle", resultHandle))

	// 6. 記錄並發布 success event
	event := pipeline.NewSuccessEvent(job, resultHandle, now())
	outcome, saved, err := w.record(ctx, log, event)
	if err != nil || outcome.EventID != event.EventID {
		// 別的 worker 先完成了同一個 source, 這份 result 沒有人引用
		w.discard(ctx, log, resultHandle)
		if err != nil {
			log.Error("reload ledger winner failed", zap.Error(err))
			return database.NackRequeue
		}
		log.Info("source converted by another worker, publishing its outcome", zap.String("event_id", outcome.EventID))
	}

	if err := w.publish(ctx, outcome); err != nil {
		log.Error("publish success event failed", zap.Error(err))
		if !saved {
			// 沒有 ledger 記錄的 result 重送時會再產生一份, 先刪掉這份
			w.discard(ctx, log, resultHandle)
		}
		return database.NackRequeue
	}

	log.Info("job converted", zap.String("event_id", outcome.EventID), zap.Int("bytes", len(res.Data)))
	return database.Ack
}

// fail publish a failure event for a job that can never succeed, then ack it
func (w *Worker) fail(ctx context.Context, log *logger.LogInfo, job pipeline.JobRecord, detail string) database.AckDecision {
	log.Warn("job failed permanently", zap.String("error_detail", detail))

	event, _, err := w.record(ctx, log, pipeline.NewFailureEvent(job, detail, now()))
	if err != nil {
		log.Error("reload ledger winner failed", zap.Error(err))
		return database.NackRequeue
	}

	if err := w.publish(ctx, event); err != nil {
		log.Error("publish failure event failed", zap.Error(err))
		return database.NackRequeue
	}
	return database.Ack
}

// lookup a ledger miss or a ledger outage both mean "process it", at-least-once allows a duplicate
func (w *Worker) lookup(ctx context.Context, log *logger.LogInfo, sourceHandle string) *domain.LedgerEntry {
	if w.ledger == nil {
		return nil
	}
	entry, err := w.ledger.Find(ctx, sourceHandle)
	if err != nil {
		log.Warn("ledger lookup failed", zap.Error(err))
		return nil
	}
	return entry
}

// record save event in the ledger and return the outcome to publish. When another worker
// recorded the same source first its event wins. saved reports whether a ledger row now
// references the returned outcome; a ledger outage is not an error.
func (w *Worker) record(ctx context.Context, log *logger.LogInfo, event pipeline.NotificationEvent) (outcome pipeline.NotificationEvent, saved bool, err error) {
	if w.ledger == nil {
		return event, false, nil
	}
	inserted, err := w.ledger.Save(ctx, domain.NewLedgerEntry(event))
	if err != nil {
		log.Warn("ledger save failed", zap.String("event_id", event.EventID), zap.Error(err))
		return event, false, nil
	}
	if inserted {
		return event, true, nil
	}

	winner, err := w.ledger.Find(ctx, event.SourceHandle)
	if err != nil {
		return event, false, err
	}
	if winner == nil {
		return event, false, fmt.Errorf("ledger entry %s vanished after conflict", event.SourceHandle)
	}
	return winner.Event(), true, nil
}

// discard delete a result object no published outcome will reference
func (w *Worker) discard(ctx context.Context, log *logger.LogInfo, handle string) {
	if err := w.result.Delete(context.WithoutCancel(ctx), handle); err != nil {
		log.Error("orphaned object", zap.String("handle", handle), zap.Error(err))
	}
}

func (w *Worker) publish(ctx context.Context, event pipeline.NotificationEvent) error {
	body, err := event.Encode()
	if err != nil {
		return pipeline.NewError(pipeline.ErrInternal, "encode event", err)
	}
	if err := w.queue.Publish(ctx, w.notificationQueue, database.Message{ID: event.EventID, Body: body}); err != nil {
		return pipeline.NewError(pipeline.ErrEnqueue, "publish event", err)
	}
	return nil
}
