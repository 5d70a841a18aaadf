package app

import (
	"context"
	"errors"
	"time"

	"media_pipeline/internal/gateway/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/database"
	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// GatewayUseCase 這裡封裝了對外提供的應用服務
type GatewayUseCase interface {
	Upload(ctx context.Context, up domain.UploadReq) (*domain.UploadRes, error)
	Download(ctx context.Context, handle string) (*domain.DownloadRes, error)
}

type gatewayUseCase struct {
	SourceStore database.BlobStore
	ResultStore database.BlobStore
	Queue       database.QueueClient
	JobQueue    string
	DownloadExt string
}

// NewGatewayUseCase 建立一個新的 GatewayUseCase
func NewGatewayUseCase(source, result database.BlobStore, queue database.QueueClient, jobQueue, downloadExt string) GatewayUseCase {
	if downloadExt == "" {
		downloadExt = "mp3"
	}
	return &gatewayUseCase{
		SourceStore: source,
		ResultStore: result,
		Queue:       queue,
		JobQueue:    jobQueue,
		DownloadExt: downloadExt,
	}
}

// 讓 test 固定時間
var now = time.Now

// Upload store the payload then publish its job record. When the publish fails the stored
// object is deleted again so no unreferenced object survives.
func (s *gatewayUseCase) Upload(ctx context.Context, up domain.UploadReq) (*domain.UploadRes, error) {
	if up.File == nil {
		return nil, pipeline.NewError(pipeline.ErrValidation, "upload", errors.New("exactly one file required"))
	}
	if up.Owner == "" {
		return nil, pipeline.NewError(pipeline.ErrValidation, "upload", errors.New("missing caller identity"))
	}

	log := logger.Log.With(zap.String("owner", up.Owner), zap.String("file_name", up.FileName))

	// 1. 存入 source store
	handle, err := s.SourceStore.Put(ctx, up.File, database.ObjectMeta{
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Owner:       up.Owner,
	})
	if err != nil {
		log.Error("put source failed", zap.Error(err))
		return nil, pipeline.NewError(pipeline.ErrStorage, "put source", err)
	}

	// 2. 建立 job record 並發布
	job := pipeline.NewJobRecord(handle, up.Owner, up.FileName, up.ContentType, now())
	log = log.With(zap.String("job_id", job.JobID), zap.String("source_handle", handle))

	body, err := job.Encode()
	if err != nil {
		return nil, s.compensate(ctx, log, handle, pipeline.NewError(pipeline.ErrInternal, "encode job", err))
	}

	if err := s.Queue.Publish(ctx, s.JobQueue, database.Message{ID: job.JobID, Body: body}); err != nil {
		log.Error("publish job failed", zap.Error(err))
		return nil, s.compensate(ctx, log, handle, pipeline.NewError(pipeline.ErrEnqueue, "publish job", err))
	}

	log.Info("job enqueued", zap.String("queue", s.JobQueue))
	return &domain.UploadRes{JobID: job.JobID, SourceHandle: handle}, nil
}

// compensate delete the stored source after a failed publish, cause is returned alone when
// the delete succeeds and joined with the delete error otherwise
func (s *gatewayUseCase) compensate(ctx context.Context, log *logger.LogInfo, handle string, cause error) error {
	// the request may already be cancelled, the delete must still run
	if delErr := s.SourceStore.Delete(context.WithoutCancel(ctx), handle); delErr != nil {
		log.Error("orphaned object", zap.Error(delErr))
		return errors.Join(cause, pipeline.NewError(pipeline.ErrStorage, "compensate delete", delErr))
	}
	log.Info("source deleted after failed enqueue")
	return cause
}

// Download open the result object named handle
func (s *gatewayUseCase) Download(ctx context.Context, handle string) (*domain.DownloadRes, error) {
	if !pipeline.ValidHandle(handle) {
		return nil, pipeline.NewError(pipeline.ErrNotFound, "download", errors.New("malformed handle"))
	}

	obj, err := s.ResultStore.Get(ctx, handle)
	if errors.Is(err, database.ErrObjectNotFound) {
		return nil, pipeline.NewError(pipeline.ErrNotFound, "download", err)
	}
	if err != nil {
		logger.Log.Error("get result failed", zap.String("result_handle", handle), zap.Error(err))
		return nil, pipeline.NewError(pipeline.ErrInternal, "download", err)
	}

	contentType := obj.Meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &domain.DownloadRes{
		Handle:      handle,
		FileName:    handle + "." + s.DownloadExt,
		ContentType: contentType,
		Size:        obj.Size,
		Body:        obj.Body,
	}, nil
}
