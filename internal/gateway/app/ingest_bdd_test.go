package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"media_pipeline/internal/gateway/domain"
	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/logger"
	testtool "media_pipeline/pkg/test_tool"

	"github.com/cucumber/godog"
)

func TestIngestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeIngestScenario,
		Options: &godog.Options{
			Paths:    []string{"./features"}, // 指向 feature 檔相對路徑
			Format:   "pretty",
			Output:   os.Stdout,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// ingestWorld 每個 scenario 的狀態
type ingestWorld struct {
	store *testtool.MemoryBlobStore
	queue *testtool.MemoryQueue
	uc    GatewayUseCase
	res   *domain.UploadRes
	err   error
}

var uploadErrKinds = map[string]error{
	"enqueue":    pipeline.ErrEnqueue,
	"storage":    pipeline.ErrStorage,
	"validation": pipeline.ErrValidation,
}

func initializeIngestScenario(s *godog.ScenarioContext) {
	w := &ingestWorld{}

	s.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		logger.SetNewNop()
		now = time.Now
		*w = ingestWorld{}
		return ctx, nil
	})

	s.Step(`^an empty source store$`, w.anEmptySourceStore)
	s.Step(`^a broker with a durable "([^"]*)" queue$`, w.aBrokerWithQueue)
	s.Step(`^the broker rejects publishes$`, w.theBrokerRejectsPublishes)
	s.Step(`^the source store rejects writes$`, w.theSourceStoreRejectsWrites)
	s.Step(`^the source store rejects deletes$`, w.theSourceStoreRejectsDeletes)
	s.Step(`^"([^"]*)" uploads a file containing "([^"]*)"$`, w.uploadsAFileContaining)
	s.Step(`^the upload succeeds$`, w.theUploadSucceeds)
	s.Step(`^the upload fails with an? (\w+) error$`, w.theUploadFailsWith)
	s.Step(`^the source store holds (\d+) objects?$`, w.theSourceStoreHolds)
	s.Step(`^the "([^"]*)" queue holds (\d+) jobs?$`, w.theQueueHolds)
	s.Step(`^the "([^"]*)" queue holds 1 job for "([^"]*)" without a result handle$`, w.theQueueHoldsJobFor)
	s.Step(`^the stored object contains "([^"]*)"$`, w.theStoredObjectContains)
}

func (w *ingestWorld) anEmptySourceStore() error {
	w.store = testtool.NewMemoryBlobStore()
	return nil
}

func (w *ingestWorld) aBrokerWithQueue(queue string) error {
	w.queue = testtool.NewMemoryQueue()
	if err := w.queue.DeclareQueue(queue); err != nil {
		return err
	}
	w.uc = NewGatewayUseCase(w.store, testtool.NewMemoryBlobStore(), w.queue, queue, "mp3")
	return nil
}

func (w *ingestWorld) theBrokerRejectsPublishes() error {
	w.queue.PublishErr = errors.New("broker unreachable")
	return nil
}

func (w *ingestWorld) theSourceStoreRejectsWrites() error {
	w.store.PutErr = errors.New("store unreachable")
	return nil
}

func (w *ingestWorld) theSourceStoreRejectsDeletes() error {
	w.store.DeleteErr = errors.New("delete refused")
	return nil
}

func (w *ingestWorld) uploadsAFileContaining(owner, content string) error {
	w.res, w.err = w.uc.Upload(context.Background(), domain.UploadReq{
		FileName: "upload.bin",
		Size:     int64(len(content)),
		File:     strings.NewReader(content),
		Owner:    owner,
	})
	return nil
}

func (w *ingestWorld) theUploadSucceeds() error {
	if w.err != nil {
		return fmt.Errorf("expected success, got %v", w.err)
	}
	return nil
}

func (w *ingestWorld) theUploadFailsWith(kind string) error {
	want, ok := uploadErrKinds[kind]
	if !ok {
		return fmt.Errorf("unknown error kind %q", kind)
	}
	if !errors.Is(w.err, want) {
		return fmt.Errorf("expected %v, got %v", want, w.err)
	}
	return nil
}

func (w *ingestWorld) theSourceStoreHolds(n int) error {
	if got := w.store.Len(); got != n {
		return fmt.Errorf("expected %d stored objects, got %d", n, got)
	}
	return nil
}

func (w *ingestWorld) theQueueHolds(queue string, n int) error {
	if got := len(w.queue.Messages(queue)); got != n {
		return fmt.Errorf("expected %d jobs on %s, got %d", n, queue, got)
	}
	return nil
}

func (w *ingestWorld) theQueueHoldsJobFor(queue, owner string) error {
	msgs := w.queue.Messages(queue)
	if len(msgs) != 1 {
		return fmt.Errorf("expected 1 job on %s, got %d", queue, len(msgs))
	}
	job, err := pipeline.DecodeJobRecord(msgs[0].Body)
	if err != nil {
		return err
	}
	if job.OwnerIdentity != owner {
		return fmt.Errorf("expected owner %s, got %s", owner, job.OwnerIdentity)
	}
	if job.ResultHandle != nil {
		return fmt.Errorf("expected no result handle, got %s", *job.ResultHandle)
	}
	if job.SourceHandle != w.res.SourceHandle {
		return fmt.Errorf("job references %s, upload stored %s", job.SourceHandle, w.res.SourceHandle)
	}
	return nil
}

func (w *ingestWorld) theStoredObjectContains(content string) error {
	if got := string(w.store.Bytes(w.res.SourceHandle)); got != content {
		return fmt.Errorf("expected stored %q, got %q", content, got)
	}
	return nil
}
