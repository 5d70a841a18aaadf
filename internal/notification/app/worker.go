package app

import (
	"context"
	"time"

	"media_pipeline/internal/notification/domain"
	"media_pipeline/internal/notification/repository"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// ServiceName is reported by the health service
const ServiceName = "notification"

const defaultDedupeTTL = 24 * time.Hour

// Worker delivers each notification event once per event id, as far as the dedupe window goes
type Worker struct {
	dedupe repository.DedupeRepository
	sink   domain.Sink
	ttl    time.Duration
}

// NewWorker 建構 Worker, dedupe may be nil to deliver every redelivery
func NewWorker(dedupe repository.DedupeRepository, sink domain.Sink, ttl time.Duration) *Worker {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &Worker{dedupe: dedupe, sink: sink, ttl: ttl}
}

// Handle process one notification queue delivery
func (w *Worker) Handle(ctx context.Context, d database.Delivery) database.AckDecision {
	log := logger.Log.With(zap.String("message_id", d.ID), zap.Bool("redelivered", d.Redelivered))

	// 1. 解析 event
	ev, err := pipeline.DecodeNotificationEvent(d.Body)
	if err != nil {
		log.Error("poison notification event", zap.Error(err))
		return database.NackDrop
	}
	log = log.With(zap.String("event_id", ev.EventID), zap.String("owner", ev.OwnerIdentity))

	// 2. 已送過就只 ack
	if w.dedupe != nil {
		seen, err := w.dedupe.Seen(ctx, ev.EventID)
		if err != nil {
			log.Warn("dedupe lookup failed", zap.Error(err))
		}
		if seen {
			log.Info("event already delivered")
			return database.Ack
		}
	}

	// 3. 送出
	if err := w.sink.Deliver(ctx, ev); err != nil {
		log.Error("deliver failed", zap.String("sink", w.sink.Name()), zap.Error(err))
		return database.NackRequeue
	}

	// 送出後才標記, 標記失敗頂多重送一次
	if w.dedupe != nil {
		if err := w.dedupe.Mark(ctx, ev.EventID, w.ttl); err != nil {
			log.Warn("dedupe mark failed", zap.Error(err))
		}
	}

	log.Info("event delivered", zap.String("status", string(ev.Status)))
	return database.Ack
}
