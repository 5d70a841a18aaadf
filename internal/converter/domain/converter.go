package domain

import (
	"context"
	"io"
	"time"

	pipeline "media_pipeline/internal/pipeline/domain"
)

// TransformReq one conversion input
type TransformReq struct {
	Input       io.Reader
	FileName    string
	ContentType string
}

// TransformRes converted bytes and their detected content type
type TransformRes struct {
	Data        []byte
	ContentType string
}

// Transformer converts a source payload into a result payload.
// Errors should be *pipeline.TransformError so the worker can tell transient from permanent.
type Transformer interface {
	Transform(ctx context.Context, req TransformReq) (*TransformRes, error)
}

// LedgerEntry remembers the outcome published for one source handle
type LedgerEntry struct {
	SourceHandle string          `gorm:"primaryKey;size:24"`
	JobID        string          `gorm:"size:64;not null"`
	Owner        string          `gorm:"size:255;not null"`
	Status       pipeline.Status `gorm:"size:16;not null"`
	ResultHandle *string         `gorm:"size:24"`
	ErrorDetail  string          `gorm:"type:text"`
	EventID      string          `gorm:"size:64;uniqueIndex;not null"`
	HappenedAt   int64           `gorm:"not null"`
	CreatedAt    time.Time
}

// TableName gorm table
func (LedgerEntry) TableName() string {
	return "conversion_ledger"
}

// NewLedgerEntry record ev as the outcome of its source
func NewLedgerEntry(ev pipeline.NotificationEvent) *LedgerEntry {
	return &LedgerEntry{
		SourceHandle: ev.SourceHandle,
		JobID:        ev.JobID,
		Owner:        ev.OwnerIdentity,
		Status:       ev.Status,
		ResultHandle: ev.ResultHandle,
		ErrorDetail:  ev.ErrorDetail,
		EventID:      ev.EventID,
		HappenedAt:   ev.HappenedAt,
	}
}

// Event rebuild the exact event that was published for this entry
func (e *LedgerEntry) Event() pipeline.NotificationEvent {
	return pipeline.NotificationEvent{
		EventID:       e.EventID,
		JobID:         e.JobID,
		SourceHandle:  e.SourceHandle,
		ResultHandle:  e.ResultHandle,
		OwnerIdentity: e.Owner,
		Status:        e.Status,
		ErrorDetail:   e.ErrorDetail,
		HappenedAt:    e.HappenedAt,
	}
}
